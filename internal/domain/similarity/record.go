package similarity

// Status is the registration status code of a CAR property.
type Status string

// Registration status codes as recorded by the CAR registry.
const (
	StatusActive    Status = "AT"
	StatusPending   Status = "PE"
	StatusSuspended Status = "SU"
	StatusCancelled Status = "CA"
)

// SizeClass is the pre-assigned property size category.
type SizeClass string

const (
	SizeSmall  SizeClass = "Pequeno"
	SizeMedium SizeClass = "Médio"
	SizeLarge  SizeClass = "Grande"
)

// Ownership labels derived from the CPF/CNPJ comparison.
const (
	OwnershipEqual     = "Igual"
	OwnershipDifferent = "Diferente"
)

// Record is one CAR-SIGEF match candidate: a CAR property paired with the
// SIGEF parcels it overlaps, enriched at load time with the derived columns.
// Pointer fields are NULLable in the relation.
type Record struct {
	// Identifiers.
	PropertyCode     string `json:"cod_imovel"`
	MunicipalityCode int64  `json:"idt_municipio"`
	MunicipalityName string `json:"municipio_nome"`
	State            string `json:"estado"`
	Region           string `json:"regiao"`

	// Geometry-derived metrics, hectares.
	CARArea          float64 `json:"area_sicar_ha"`
	SIGEFArea        float64 `json:"area_sigef_agregado_ha"`
	IntersectionArea float64 `json:"area_intersecao_ha"`

	// Jaccard coefficient of the CAR and SIGEF geometries, in [0,1].
	SimilarityIndex float64 `json:"indice_jaccard"`

	// Upstream attributes.
	SizeClass        SizeClass `json:"class_tam_imovel"`
	Status           Status    `json:"status_imovel"`
	RegistrationDate *string   `json:"data_cadastro_imovel"`

	// Derived columns, computed once at load time.
	OwnershipLabel   string   `json:"label_cpf"`
	RegistrationYear *int     `json:"ano_cadastro"`
	Band             Band     `json:"faixa_jaccard"`
	DiscrepancyPct   *float64 `json:"discrepancia_pct"`

	// Optional enrichment merged by the totals importer; nil when the
	// dataset was produced without registry access.
	MunicipalityTotalCARs *int64 `json:"total_cars_municipio"`
}

// Aggregates are the filter-scoped scalar statistics computed inside the
// engine.  Mean and median similarity are percentages in [0,100].
type Aggregates struct {
	Count            int64   `json:"count"`
	MeanSimilarity   float64 `json:"mean_similarity"`
	MedianSimilarity float64 `json:"median_similarity"`
	DistinctStates   int64   `json:"distinct_states"`
}

// Metadata lists the distinct non-null values of each filterable dimension,
// used to populate filter option lists.
type Metadata struct {
	Regions        []string `json:"regions"`
	States         []string `json:"states"`
	Municipalities []string `json:"municipalities"`
	SizeClasses    []string `json:"size_classes"`
	Statuses       []string `json:"statuses"`
}
