package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// BandCount is one bucket of the similarity-band histogram.
type BandCount struct {
	Band  similarity.Band `json:"band"`
	Count int64           `json:"count"`
	Share float64         `json:"share"`
}

// OwnershipCount is one slice of the ownership breakdown.
type OwnershipCount struct {
	Label string  `json:"label"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

// OwnershipDimension names the column an ownership breakdown is grouped by.
type OwnershipDimension string

const (
	GroupByState        OwnershipDimension = "estado"
	GroupByMunicipality OwnershipDimension = "municipio_nome"
)

// GroupOwnership is the ownership split within one state or municipality.
type GroupOwnership struct {
	Group     string `json:"group"`
	Equal     int64  `json:"equal"`
	Different int64  `json:"different"`
}

// YearCount is one point of the registration-year evolution series.
type YearCount struct {
	Year           int     `json:"year"`
	Count          int64   `json:"count"`
	MeanSimilarity float64 `json:"mean_similarity"`
}

// BandDistribution counts matching rows per similarity band. All four bands
// are always present, zero-filled, in ascending band order; rows without a
// similarity index are excluded.
func (s *Service) BandDistribution(ctx context.Context, c similarity.FilterCriteria) ([]BandCount, error) {
	db, err := s.store.Handle(ctx)
	if err != nil {
		return nil, err
	}
	conds, args := filterConditions(c)
	withBand := append(append([]string(nil), conds...), "faixa_jaccard IS NOT NULL")
	query := fmt.Sprintf(`SELECT faixa_jaccard, COUNT(*) FROM %s%s GROUP BY faixa_jaccard`,
		dataset.TableMatches, whereSQL(withBand))

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindDistribution)
	}
	counts, total, err := s.groupCounts(ctx, db, query, args, "band distribution")
	if err != nil {
		return nil, err
	}

	out := make([]BandCount, 0, 4)
	for _, band := range similarity.Bands() {
		bc := BandCount{Band: band, Count: counts[string(band)]}
		if total > 0 {
			bc.Share = float64(bc.Count) / float64(total)
		}
		out = append(out, bc)
	}
	return out, nil
}

// OwnershipBreakdown counts matching rows by ownership label. Rows with no
// ownership information are excluded.
func (s *Service) OwnershipBreakdown(ctx context.Context, c similarity.FilterCriteria) ([]OwnershipCount, error) {
	db, err := s.store.Handle(ctx)
	if err != nil {
		return nil, err
	}
	conds, args := filterConditions(c)
	withLabel := append(append([]string(nil), conds...), "label_cpf IS NOT NULL")
	query := fmt.Sprintf(`SELECT label_cpf, COUNT(*) FROM %s%s GROUP BY label_cpf`,
		dataset.TableMatches, whereSQL(withLabel))

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindDistribution)
	}
	counts, total, err := s.groupCounts(ctx, db, query, args, "ownership breakdown")
	if err != nil {
		return nil, err
	}

	out := make([]OwnershipCount, 0, 2)
	for _, label := range []string{similarity.OwnershipEqual, similarity.OwnershipDifferent} {
		oc := OwnershipCount{Label: label, Count: counts[label]}
		if total > 0 {
			oc.Share = float64(oc.Count) / float64(total)
		}
		out = append(out, oc)
	}
	return out, nil
}

// OwnershipByDimension splits the ownership breakdown per state or per
// municipality. Groups are ordered by name; rows missing either the label
// or the grouping value are excluded.
func (s *Service) OwnershipByDimension(ctx context.Context, c similarity.FilterCriteria, dim OwnershipDimension) ([]GroupOwnership, error) {
	switch dim {
	case GroupByState, GroupByMunicipality:
	default:
		return nil, apperrors.InvalidParam(fmt.Sprintf("unsupported ownership grouping %q", dim))
	}
	db, err := s.store.Handle(ctx)
	if err != nil {
		return nil, err
	}
	conds, args := filterConditions(c)
	conds = append(append([]string(nil), conds...),
		"label_cpf IS NOT NULL", string(dim)+" IS NOT NULL")
	query := fmt.Sprintf(`SELECT %s, label_cpf, COUNT(*) FROM %s%s GROUP BY %s, label_cpf ORDER BY %s`,
		dim, dataset.TableMatches, whereSQL(conds), dim, dim)

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindDistribution)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.queryFailure(metrics.QueryKindDistribution, err, "query grouped ownership")
	}
	defer rows.Close()

	var out []GroupOwnership
	for rows.Next() {
		var group, label string
		var count int64
		if err := rows.Scan(&group, &label, &count); err != nil {
			return nil, s.queryFailure(metrics.QueryKindDistribution, err, "scan grouped ownership")
		}
		if len(out) == 0 || out[len(out)-1].Group != group {
			out = append(out, GroupOwnership{Group: group})
		}
		switch label {
		case similarity.OwnershipEqual:
			out[len(out)-1].Equal = count
		case similarity.OwnershipDifferent:
			out[len(out)-1].Different = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryFailure(metrics.QueryKindDistribution, err, "iterate grouped ownership")
	}
	return out, nil
}

// YearlyEvolution returns per-registration-year match counts and mean
// similarity, ascending by year. Rows with no parseable registration date
// are excluded.
func (s *Service) YearlyEvolution(ctx context.Context, c similarity.FilterCriteria) ([]YearCount, error) {
	db, err := s.store.Handle(ctx)
	if err != nil {
		return nil, err
	}
	conds, args := filterConditions(c)
	withYear := append(append([]string(nil), conds...), "ano_cadastro IS NOT NULL")
	query := fmt.Sprintf(`SELECT ano_cadastro, COUNT(*), COALESCE(AVG(indice_jaccard) * 100, 0)
FROM %s%s
GROUP BY ano_cadastro
ORDER BY ano_cadastro`, dataset.TableMatches, whereSQL(withYear))

	if s.metrics != nil {
		s.metrics.IncQuery(metrics.QueryKindDistribution)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.queryFailure(metrics.QueryKindDistribution, err, "query yearly evolution")
	}
	defer rows.Close()

	var out []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count, &yc.MeanSimilarity); err != nil {
			return nil, s.queryFailure(metrics.QueryKindDistribution, err, "scan yearly evolution")
		}
		out = append(out, yc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryFailure(metrics.QueryKindDistribution, err, "iterate yearly evolution")
	}
	return out, nil
}

// groupCounts runs a two-column (label, count) GROUP BY query and returns
// the label map plus the grand total.
func (s *Service) groupCounts(ctx context.Context, db *sql.DB, query string, args []any, what string) (map[string]int64, int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, s.queryFailure(metrics.QueryKindDistribution, err, "query "+what)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	var total int64
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, 0, s.queryFailure(metrics.QueryKindDistribution, err, "scan "+what)
		}
		counts[label] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.queryFailure(metrics.QueryKindDistribution, err, "iterate "+what)
	}
	return counts, total, nil
}
