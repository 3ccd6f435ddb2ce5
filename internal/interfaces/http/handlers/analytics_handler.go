package handlers

import (
	"net/http"

	appanalytics "github.com/zetta-ds/carsigef/internal/application/analytics"
	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
	"github.com/zetta-ds/carsigef/pkg/types/analytics"
)

// AnalyticsHandler serves the filter-to-aggregate endpoints of the API.
type AnalyticsHandler struct {
	service *appanalytics.Service
	log     logging.Logger
}

// NewAnalyticsHandler builds an AnalyticsHandler.
func NewAnalyticsHandler(service *appanalytics.Service, log logging.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, log: log.Named("http.analytics")}
}

func (h *AnalyticsHandler) criteria(r *http.Request) (similarity.FilterCriteria, error) {
	return h.service.Criteria(r.Context(), parseSelection(r))
}

// Metadata returns the filter option lists.
// GET /api/v1/metadata
func (h *AnalyticsHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.Metadata(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.MetadataResponse{Metadata: *meta})
}

// Records returns the primary (detail) view: filtered rows plus aggregates.
// State selections supersede region selections.
// GET /api/v1/records
func (h *AnalyticsHandler) Records(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	res, err := h.service.Primary(r.Context(), c)
	if err != nil {
		// A failed recompute falls back to the previous materialization when
		// one exists; data staleness beats a blank dashboard.
		if apperrors.IsQueryFailure(err) {
			if prev, ok := h.service.PrimaryCached(); ok {
				h.log.Warn("serving stale primary view after recompute failure",
					logging.Err(err))
				writeJSON(w, http.StatusOK, recordsResponse(prev, true))
				return
			}
		}
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse(res, false))
}

// OverviewRecords returns the national overview view: state and municipality
// filters dropped, regions kept or derived from the selected states.
// GET /api/v1/overview/records
func (h *AnalyticsHandler) OverviewRecords(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	res, err := h.service.Overview(r.Context(), c)
	if err != nil {
		if apperrors.IsQueryFailure(err) {
			if prev, ok := h.service.OverviewCached(); ok {
				h.log.Warn("serving stale overview after recompute failure",
					logging.Err(err))
				writeJSON(w, http.StatusOK, recordsResponse(prev, true))
				return
			}
		}
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse(res, false))
}

func recordsResponse(res *appanalytics.ViewResult, stale bool) analytics.RecordsResponse {
	return analytics.RecordsResponse{
		Filter:     analytics.EchoFilter(res.Criteria),
		Aggregates: res.Aggregates,
		Count:      len(res.Records),
		Records:    res.Records,
		Stale:      stale,
	}
}

// Aggregates returns the filter-scoped statistics without the row payload.
// GET /api/v1/aggregates
func (h *AnalyticsHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	view := c.PrimaryView()
	aggs, err := h.service.FetchAggregates(r.Context(), view)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.AggregatesResponse{
		Filter:     analytics.EchoFilter(view),
		Aggregates: aggs,
	})
}

// BandDistribution returns the similarity-band histogram.
// GET /api/v1/distribution/bands
func (h *AnalyticsHandler) BandDistribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	view := c.PrimaryView()
	dist, err := h.service.BandDistribution(r.Context(), view)
	if err != nil {
		writeAppError(w, err)
		return
	}
	buckets := make([]analytics.BandBucket, 0, len(dist))
	for _, b := range dist {
		buckets = append(buckets, analytics.BandBucket{
			Band:  string(b.Band),
			Count: b.Count,
			Share: b.Share,
		})
	}
	writeJSON(w, http.StatusOK, analytics.BandDistributionResponse{
		Filter: analytics.EchoFilter(view),
		Bands:  buckets,
	})
}

// Ownership returns the CPF/CNPJ equality breakdown. An optional
// por=uf|municipio parameter adds a per-state or per-municipality split.
// GET /api/v1/distribution/ownership
func (h *AnalyticsHandler) Ownership(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	view := c.PrimaryView()

	var groups []analytics.OwnershipGroup
	if por := r.URL.Query().Get("por"); por != "" {
		dim, ok := ownershipDimensions[por]
		if !ok {
			writeAppError(w, apperrors.InvalidParam("por must be uf or municipio"))
			return
		}
		grouped, err := h.service.OwnershipByDimension(r.Context(), view, dim)
		if err != nil {
			writeAppError(w, err)
			return
		}
		groups = make([]analytics.OwnershipGroup, 0, len(grouped))
		for _, g := range grouped {
			groups = append(groups, analytics.OwnershipGroup{
				Group:     g.Group,
				Equal:     g.Equal,
				Different: g.Different,
			})
		}
	}

	breakdown, err := h.service.OwnershipBreakdown(r.Context(), view)
	if err != nil {
		writeAppError(w, err)
		return
	}
	slices := make([]analytics.OwnershipSlice, 0, len(breakdown))
	for _, s := range breakdown {
		slices = append(slices, analytics.OwnershipSlice{
			Label: s.Label,
			Count: s.Count,
			Share: s.Share,
		})
	}
	writeJSON(w, http.StatusOK, analytics.OwnershipResponse{
		Filter: analytics.EchoFilter(view),
		Slices: slices,
		Groups: groups,
	})
}

// ownershipDimensions maps the "por" query parameter to a grouping column.
var ownershipDimensions = map[string]appanalytics.OwnershipDimension{
	"uf":        appanalytics.GroupByState,
	"municipio": appanalytics.GroupByMunicipality,
}

// Evolution returns per-registration-year counts and mean similarity.
// GET /api/v1/evolution/years
func (h *AnalyticsHandler) Evolution(w http.ResponseWriter, r *http.Request) {
	c, err := h.criteria(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	view := c.PrimaryView()
	series, err := h.service.YearlyEvolution(r.Context(), view)
	if err != nil {
		writeAppError(w, err)
		return
	}
	years := make([]analytics.YearPoint, 0, len(series))
	for _, y := range series {
		years = append(years, analytics.YearPoint{
			Year:           y.Year,
			Count:          y.Count,
			MeanSimilarity: y.MeanSimilarity,
		})
	}
	writeJSON(w, http.StatusOK, analytics.EvolutionResponse{
		Filter: analytics.EchoFilter(view),
		Years:  years,
	})
}

// Reset drops the loaded dataset and both view caches. The next query
// reloads from the source.
// POST /api/v1/dataset/reset
func (h *AnalyticsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.service.Reset()
	writeJSON(w, http.StatusOK, analytics.ResetResponse{Status: "reset"})
}
