// Package analytics is the query layer of the backend: it translates filter
// criteria into SQL over the enriched relation, computes filter-scoped
// aggregates inside the engine and memoizes the two dashboard views.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/cache"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// ViewResult is one materialized dashboard view: the filtered rows plus the
// aggregates computed over the same filter.
type ViewResult struct {
	Criteria   similarity.FilterCriteria
	Records    []similarity.Record
	Aggregates similarity.Aggregates
}

// Service executes filtered queries and owns the per-view result caches.
type Service struct {
	store   *dataset.Store
	log     logging.Logger
	metrics *metrics.Collector

	primary  cache.Slot[string, *ViewResult]
	overview cache.Slot[string, *ViewResult]
}

// NewService builds the analytics service. The collector may be nil.
func NewService(store *dataset.Store, log logging.Logger, collector *metrics.Collector) *Service {
	return &Service{store: store, log: log.Named("analytics"), metrics: collector}
}

// Metadata returns the filter option lists, loading the dataset if needed.
func (s *Service) Metadata(ctx context.Context) (*similarity.Metadata, error) {
	return s.store.Metadata(ctx)
}

// Criteria validates a raw selection against the loaded dataset's metadata.
func (s *Service) Criteria(ctx context.Context, sel similarity.Selection) (similarity.FilterCriteria, error) {
	meta, err := s.Metadata(ctx)
	if err != nil {
		return similarity.FilterCriteria{}, err
	}
	return similarity.NewCriteria(sel, meta), nil
}

// Primary materializes the primary (detail) view for the criteria, serving
// from cache when the effective view criteria are unchanged.
func (s *Service) Primary(ctx context.Context, c similarity.FilterCriteria) (*ViewResult, error) {
	return s.materialize(ctx, c.PrimaryView(), &s.primary, metrics.SlotPrimary)
}

// Overview materializes the national overview: state and municipality
// filters are dropped, with explicit regions or those implied by the
// selected states retained.
func (s *Service) Overview(ctx context.Context, c similarity.FilterCriteria) (*ViewResult, error) {
	return s.materialize(ctx, c.OverviewView(), &s.overview, metrics.SlotOverview)
}

// PrimaryCached returns the last primary materialization, if any, without
// querying. Used as a stale fallback when a recompute fails.
func (s *Service) PrimaryCached() (*ViewResult, bool) {
	return s.primary.Last()
}

// OverviewCached returns the last overview materialization, if any.
func (s *Service) OverviewCached() (*ViewResult, bool) {
	return s.overview.Last()
}

// Reset drops the loaded relation and empties both view caches. The next
// access reloads from the source.
func (s *Service) Reset() {
	s.store.Reset()
	s.primary.Invalidate()
	s.overview.Invalidate()
	s.log.Info("analytics caches invalidated")
}

func (s *Service) materialize(ctx context.Context, view similarity.FilterCriteria,
	slot *cache.Slot[string, *ViewResult], slotName string) (*ViewResult, error) {

	key := view.Key()
	if _, hit := slot.Peek(key); hit {
		if s.metrics != nil {
			s.metrics.IncCacheHit(slotName)
		}
	} else if s.metrics != nil {
		s.metrics.IncCacheMiss(slotName)
	}

	return slot.GetOrCompute(key, func() (*ViewResult, error) {
		records, err := s.FetchRows(ctx, view)
		if err != nil {
			return nil, err
		}
		aggs, err := s.FetchAggregates(ctx, view)
		if err != nil {
			return nil, err
		}
		return &ViewResult{Criteria: view, Records: records, Aggregates: aggs}, nil
	})
}

// filterConditions translates criteria into SQL conditions plus bind args.
// Empty dimensions impose no condition.
func filterConditions(c similarity.FilterCriteria) ([]string, []any) {
	var conds []string
	var args []any
	add := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		conds = append(conds, fmt.Sprintf("%s IN (%s)", column, placeholders))
		for _, v := range values {
			args = append(args, v)
		}
	}
	add("regiao", c.Regions())
	add("estado", c.States())
	add("municipio_nome", c.Municipalities())
	add("class_tam_imovel", c.SizeClasses())
	add("status_imovel", c.Statuses())
	return conds, args
}

func whereSQL(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

const recordColumns = `cod_imovel, idt_municipio, municipio_nome, estado, regiao,
	area_sicar_ha, area_sigef_agregado_ha, area_intersecao_ha, indice_jaccard,
	class_tam_imovel, status_imovel, data_cadastro_imovel, total_cars_municipio,
	label_cpf, ano_cadastro, faixa_jaccard, discrepancia_pct`

// FetchRows returns the records matching the criteria, ordered by property
// code for deterministic output.
func (s *Service) FetchRows(ctx context.Context, c similarity.FilterCriteria) ([]similarity.Record, error) {
	db, err := s.store.Handle(ctx)
	if err != nil {
		return nil, err
	}
	conds, args := filterConditions(c)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY cod_imovel",
		recordColumns, dataset.TableMatches, whereSQL(conds))

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindRows)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.queryFailure(metrics.QueryKindRows, err, "query filtered rows")
	}
	defer rows.Close()

	var records []similarity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.queryFailure(metrics.QueryKindRows, err, "scan filtered row")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryFailure(metrics.QueryKindRows, err, "iterate filtered rows")
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (similarity.Record, error) {
	var (
		rec       similarity.Record
		muni      sql.NullInt64
		muniName  sql.NullString
		state     sql.NullString
		region    sql.NullString
		carArea   sql.NullFloat64
		sigefArea sql.NullFloat64
		interArea sql.NullFloat64
		jaccard   sql.NullFloat64
		sizeClass sql.NullString
		status    sql.NullString
		regDate   sql.NullString
		munTotal  sql.NullInt64
		ownership sql.NullString
		regYear   sql.NullInt64
		band      sql.NullString
		discrep   sql.NullFloat64
	)
	err := rows.Scan(&rec.PropertyCode, &muni, &muniName, &state, &region,
		&carArea, &sigefArea, &interArea, &jaccard,
		&sizeClass, &status, &regDate, &munTotal,
		&ownership, &regYear, &band, &discrep)
	if err != nil {
		return rec, err
	}

	rec.MunicipalityCode = muni.Int64
	rec.MunicipalityName = muniName.String
	rec.State = state.String
	rec.Region = region.String
	rec.CARArea = carArea.Float64
	rec.SIGEFArea = sigefArea.Float64
	rec.IntersectionArea = interArea.Float64
	rec.SimilarityIndex = jaccard.Float64
	rec.SizeClass = similarity.SizeClass(sizeClass.String)
	rec.Status = similarity.Status(status.String)
	rec.OwnershipLabel = ownership.String
	rec.Band = similarity.Band(band.String)
	if regDate.Valid {
		rec.RegistrationDate = &regDate.String
	}
	if regYear.Valid {
		year := int(regYear.Int64)
		rec.RegistrationYear = &year
	}
	if discrep.Valid {
		rec.DiscrepancyPct = &discrep.Float64
	}
	if munTotal.Valid {
		rec.MunicipalityTotalCARs = &munTotal.Int64
	}
	return rec, nil
}

// FetchAggregates computes the filter-scoped statistics entirely inside the
// engine. An empty match set yields zero values, not an error.
func (s *Service) FetchAggregates(ctx context.Context, c similarity.FilterCriteria) (similarity.Aggregates, error) {
	var aggs similarity.Aggregates

	db, err := s.store.Handle(ctx)
	if err != nil {
		return aggs, err
	}
	conds, args := filterConditions(c)

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindAggregates)
	}
	scalarQuery := fmt.Sprintf(`SELECT
	COUNT(*),
	COALESCE(AVG(indice_jaccard) * 100, 0),
	COUNT(DISTINCT estado)
FROM %s%s`, dataset.TableMatches, whereSQL(conds))

	err = db.QueryRowContext(ctx, scalarQuery, args...).
		Scan(&aggs.Count, &aggs.MeanSimilarity, &aggs.DistinctStates)
	if err != nil {
		return aggs, s.queryFailure(metrics.QueryKindAggregates, err, "compute aggregates")
	}

	median, err := s.medianSimilarity(ctx, db, conds, args)
	if err != nil {
		return aggs, err
	}
	aggs.MedianSimilarity = median
	return aggs, nil
}

// medianSimilarity computes the exact median Jaccard of the non-null
// matching rows, averaging the two middle values for even cardinalities.
// Computed in-engine; the row set is never materialized into Go.
func (s *Service) medianSimilarity(ctx context.Context, db *sql.DB, conds []string, args []any) (float64, error) {
	withSim := append(append([]string(nil), conds...), "indice_jaccard IS NOT NULL")
	from := fmt.Sprintf("FROM %s%s", dataset.TableMatches, whereSQL(withSim))

	query := fmt.Sprintf(`SELECT COALESCE(AVG(indice_jaccard) * 100, 0) FROM (
	SELECT indice_jaccard %[1]s
	ORDER BY indice_jaccard
	LIMIT 2 - (SELECT COUNT(*) %[1]s) %% 2
	OFFSET (SELECT (COUNT(*) - 1) / 2 %[1]s)
)`, from)

	tripled := make([]any, 0, len(args)*3)
	for i := 0; i < 3; i++ {
		tripled = append(tripled, args...)
	}

	var median float64
	if err := db.QueryRowContext(ctx, query, tripled...).Scan(&median); err != nil {
		return 0, s.queryFailure(metrics.QueryKindAggregates, err, "compute median similarity")
	}
	return median, nil
}

func (s *Service) queryFailure(kind string, err error, msg string) error {
	if s.metrics != nil {
		s.metrics.IncQueryFailure(kind)
	}
	s.log.Error(msg, logging.Err(err))
	return apperrors.Wrap(err, apperrors.ErrCodeQueryFailure, msg)
}
