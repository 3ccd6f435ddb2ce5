package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// MunicipalityYearTotal is one registry count: how many distinct CARs a
// municipality had registered in a given year.
type MunicipalityYearTotal struct {
	MunicipalityID string
	Year           int
	TotalCARs      int64
}

// totalsQuery counts distinct registered properties per municipality and
// registration year over the raw CAR registry relation.
const totalsQuery = `
SELECT
	idt_municipio::text,
	EXTRACT(YEAR FROM dat_criacao)::int AS ano_cadastro,
	COUNT(DISTINCT cod_imovel) AS total_cars_municipio
FROM regularizacao_ambiental.car_imovel_dados_cadastrais_bruto_atualizado
WHERE dat_criacao IS NOT NULL
	AND idt_municipio IS NOT NULL
GROUP BY idt_municipio, EXTRACT(YEAR FROM dat_criacao)
ORDER BY idt_municipio, ano_cadastro`

// querier is the slice of the pgx API the repository needs; satisfied by
// *pgxpool.Pool and by test doubles.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TotalsRepo reads municipality CAR totals from the MGI registry.
type TotalsRepo struct {
	db  querier
	log logging.Logger
}

// NewTotalsRepo builds a TotalsRepo over a pgx pool or compatible querier.
func NewTotalsRepo(db querier, log logging.Logger) *TotalsRepo {
	return &TotalsRepo{db: db, log: log.Named("mgi")}
}

// FetchTotals runs the registry aggregation. The query scans the full raw
// relation, so callers should budget minutes, not seconds.
func (r *TotalsRepo) FetchTotals(ctx context.Context) ([]MunicipalityYearTotal, error) {
	r.log.Info("querying mgi registry for municipality totals")

	rows, err := r.db.Query(ctx, totalsQuery)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryError, "query municipality totals")
	}
	defer rows.Close()

	var totals []MunicipalityYearTotal
	for rows.Next() {
		var t MunicipalityYearTotal
		if err := rows.Scan(&t.MunicipalityID, &t.Year, &t.TotalCARs); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryError, "scan municipality total")
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryError, "iterate municipality totals")
	}

	r.log.Info("fetched municipality totals", logging.Int("rows", len(totals)))
	return totals, nil
}
