package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandForPartition(t *testing.T) {
	cases := []struct {
		jaccard float64
		want    Band
	}{
		{0.0, Band0to25},
		{0.1, Band0to25},
		{0.24, Band0to25},
		{0.25, Band25to50},
		{0.49, Band25to50},
		{0.50, Band50to85},
		{0.84, Band50to85},
		{0.85, Band85to100},
		{0.90, Band85to100},
		{0.99, Band85to100},
		{1.00, Band85to100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BandFor(tc.jaccard), "jaccard=%v", tc.jaccard)
	}
}

// Every value in [0,1] lands in exactly one band; boundaries never overlap.
func TestBandForExhaustive(t *testing.T) {
	for i := 0; i <= 10000; i++ {
		j := float64(i) / 10000
		band := BandFor(j)
		assert.NotEmpty(t, band, "jaccard=%v must belong to a band", j)

		n := 0
		for _, b := range Bands() {
			if b == band {
				n++
			}
		}
		assert.Equal(t, 1, n, "jaccard=%v matched %d canonical bands", j, n)
	}
}

func TestBandForOutOfRange(t *testing.T) {
	assert.Equal(t, Band(""), BandFor(-0.01))
	assert.Equal(t, Band(""), BandFor(1.01))
}

// Expected distribution over the ten index values of the reference dataset.
func TestBandDistributionReference(t *testing.T) {
	indices := []float64{0.1, 0.24, 0.25, 0.49, 0.50, 0.84, 0.85, 0.90, 0.99, 1.00}
	counts := map[Band]int{}
	for _, j := range indices {
		counts[BandFor(j)]++
	}

	assert.Equal(t, 2, counts[Band0to25])
	assert.Equal(t, 2, counts[Band25to50])
	assert.Equal(t, 2, counts[Band50to85])
	assert.Equal(t, 4, counts[Band85to100])
}
