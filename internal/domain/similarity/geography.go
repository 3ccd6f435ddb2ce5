package similarity

import (
	"sort"
	"strings"
)

// regionByState maps each of the 27 Brazilian UFs to its macro-region, using
// the region codes the dataset carries.  This table is fixed by IBGE's
// division and is used to recover a region context when the user selected
// states but no regions.
var regionByState = map[string]string{
	"AC": "norte", "AP": "norte", "AM": "norte", "PA": "norte",
	"RO": "norte", "RR": "norte", "TO": "norte",

	"AL": "nordeste", "BA": "nordeste", "CE": "nordeste", "MA": "nordeste",
	"PB": "nordeste", "PE": "nordeste", "PI": "nordeste", "RN": "nordeste",
	"SE": "nordeste",

	"DF": "centro_oeste", "GO": "centro_oeste", "MT": "centro_oeste",
	"MS": "centro_oeste",

	"ES": "sudeste", "MG": "sudeste", "RJ": "sudeste", "SP": "sudeste",

	"PR": "sul", "RS": "sul", "SC": "sul",
}

// RegionOf returns the macro-region of a UF code, or "" for unknown codes.
// Matching is case-insensitive.
func RegionOf(state string) string {
	return regionByState[strings.ToUpper(strings.TrimSpace(state))]
}

// RegionsForStates returns the sorted, de-duplicated set of macro-regions
// the given UFs belong to.  Unknown UF codes are skipped.
func RegionsForStates(states []string) []string {
	seen := make(map[string]struct{}, len(states))
	for _, uf := range states {
		if r := RegionOf(uf); r != "" {
			seen[r] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
