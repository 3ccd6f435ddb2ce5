// Package analytics defines the wire-level request and response types of the
// HTTP API.
package analytics

import "github.com/zetta-ds/carsigef/internal/domain/similarity"

// FilterEcho repeats the effective, normalized filter back to the client so
// the UI can show what was actually applied after precedence rules.
type FilterEcho struct {
	Regions        []string `json:"regions,omitempty"`
	States         []string `json:"states,omitempty"`
	Municipalities []string `json:"municipalities,omitempty"`
	SizeClasses    []string `json:"size_classes,omitempty"`
	Statuses       []string `json:"statuses,omitempty"`
}

// RecordsResponse is the body of the record-listing endpoints.
type RecordsResponse struct {
	Filter     FilterEcho            `json:"filter"`
	Aggregates similarity.Aggregates `json:"aggregates"`
	Count      int                   `json:"count"`
	Records    []similarity.Record   `json:"records"`
	// Stale marks a response served from the previous materialization after
	// a recompute failure.
	Stale bool `json:"stale,omitempty"`
}

// AggregatesResponse is the body of the aggregates endpoint.
type AggregatesResponse struct {
	Filter     FilterEcho            `json:"filter"`
	Aggregates similarity.Aggregates `json:"aggregates"`
}

// BandBucket is one histogram bucket of the band-distribution endpoint.
type BandBucket struct {
	Band  string  `json:"band"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

// BandDistributionResponse is the body of the band-distribution endpoint.
type BandDistributionResponse struct {
	Filter FilterEcho   `json:"filter"`
	Bands  []BandBucket `json:"bands"`
}

// OwnershipSlice is one entry of the ownership-breakdown endpoint.
type OwnershipSlice struct {
	Label string  `json:"label"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

// OwnershipGroup is the ownership split for one state or municipality.
type OwnershipGroup struct {
	Group     string `json:"group"`
	Equal     int64  `json:"equal"`
	Different int64  `json:"different"`
}

// OwnershipResponse is the body of the ownership-breakdown endpoint.
type OwnershipResponse struct {
	Filter FilterEcho       `json:"filter"`
	Slices []OwnershipSlice `json:"slices"`
	Groups []OwnershipGroup `json:"groups,omitempty"`
}

// YearPoint is one point of the yearly-evolution endpoint.
type YearPoint struct {
	Year           int     `json:"year"`
	Count          int64   `json:"count"`
	MeanSimilarity float64 `json:"mean_similarity"`
}

// EvolutionResponse is the body of the yearly-evolution endpoint.
type EvolutionResponse struct {
	Filter FilterEcho  `json:"filter"`
	Years  []YearPoint `json:"years"`
}

// MetadataResponse is the body of the metadata endpoint.
type MetadataResponse struct {
	Metadata similarity.Metadata `json:"metadata"`
}

// ResetResponse is the body of the dataset-reset endpoint.
type ResetResponse struct {
	Status string `json:"status"`
}

// EchoFilter converts effective criteria into a FilterEcho.
func EchoFilter(c similarity.FilterCriteria) FilterEcho {
	return FilterEcho{
		Regions:        c.Regions(),
		States:         c.States(),
		Municipalities: c.Municipalities(),
		SizeClasses:    c.SizeClasses(),
		Statuses:       c.Statuses(),
	}
}
