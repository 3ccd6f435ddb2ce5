// Package similarity holds the domain model of the CAR-SIGEF match dataset:
// the record shape, the similarity banding scheme, the filter criteria
// value object, and the CPF/CNPJ ownership comparison rules.
package similarity

// Similarity band boundaries.  The Jaccard index of a match is bucketed
// into four contiguous intervals; bands are right-open except the last,
// which includes 1.0.  HighConfidenceThreshold (0.85) is the boundary the
// risk matrix and maps treat as "high confidence" and must never be
// re-derived at call sites.
const (
	BandLowUpper    = 0.25
	BandMediumUpper = 0.50

	// HighConfidenceThreshold separates the "50-85%" band from the
	// high-confidence "85-100%" band.
	HighConfidenceThreshold = 0.85
)

// Band is the categorical label of a similarity interval.
type Band string

// The four canonical bands, in ascending order.
const (
	Band0to25   Band = "0-25%"
	Band25to50  Band = "25-50%"
	Band50to85  Band = "50-85%"
	Band85to100 Band = "85-100%"
)

// Bands lists the four bands in ascending order of similarity.
func Bands() []Band {
	return []Band{Band0to25, Band25to50, Band50to85, Band85to100}
}

// BandFor returns the band containing the given Jaccard index.  Every value
// in [0,1] belongs to exactly one band.  Values outside [0,1] return the
// empty Band, mirroring the NULL the engine produces for out-of-range rows.
func BandFor(jaccard float64) Band {
	switch {
	case jaccard < 0 || jaccard > 1:
		return ""
	case jaccard < BandLowUpper:
		return Band0to25
	case jaccard < BandMediumUpper:
		return Band25to50
	case jaccard < HighConfidenceThreshold:
		return Band50to85
	default:
		return Band85to100
	}
}
