package similarity

import (
	"sort"
	"strconv"
	"strings"
)

// Selection is the raw, UI-shaped filter input: five independently chosen
// value lists, possibly unsorted, with duplicates, blanks or stray
// whitespace.  An empty list means "no restriction on that dimension".
type Selection struct {
	Regions        []string
	States         []string
	Municipalities []string
	SizeClasses    []string
	Statuses       []string
}

// FilterCriteria is the immutable, cache-keyable form of a Selection: five
// sorted, de-duplicated sets.  Construct it with NewCriteria; the zero
// value matches every row.
type FilterCriteria struct {
	regions        []string
	states         []string
	municipalities []string
	sizeClasses    []string
	statuses       []string
}

// normalizeDimension trims values, drops blanks, keeps only members of the
// allowed set (when allowed is non-nil), de-duplicates and sorts.  Unknown
// entries are dropped silently rather than erroring: a stale UI option list
// must not break the pipeline.
func normalizeDimension(values []string, allowed map[string]struct{}) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[v]; !ok {
				continue
			}
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	if values == nil {
		return nil
	}
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// NewCriteria builds a FilterCriteria from a raw Selection.  When meta is
// non-nil each dimension is validated against the dataset's known option
// set; unknown and blank entries are dropped.
func NewCriteria(sel Selection, meta *Metadata) FilterCriteria {
	var regions, states, municipalities, sizes, statuses map[string]struct{}
	if meta != nil {
		regions = toSet(meta.Regions)
		states = toSet(meta.States)
		municipalities = toSet(meta.Municipalities)
		sizes = toSet(meta.SizeClasses)
		statuses = toSet(meta.Statuses)
	}
	return FilterCriteria{
		regions:        normalizeDimension(sel.Regions, regions),
		states:         normalizeDimension(sel.States, states),
		municipalities: normalizeDimension(sel.Municipalities, municipalities),
		sizeClasses:    normalizeDimension(sel.SizeClasses, sizes),
		statuses:       normalizeDimension(sel.Statuses, statuses),
	}
}

// Accessors return defensive copies so callers cannot mutate the criteria.

func (c FilterCriteria) Regions() []string        { return append([]string(nil), c.regions...) }
func (c FilterCriteria) States() []string         { return append([]string(nil), c.states...) }
func (c FilterCriteria) Municipalities() []string { return append([]string(nil), c.municipalities...) }
func (c FilterCriteria) SizeClasses() []string    { return append([]string(nil), c.sizeClasses...) }
func (c FilterCriteria) Statuses() []string       { return append([]string(nil), c.statuses...) }

// IsEmpty reports whether no dimension is restricted.
func (c FilterCriteria) IsEmpty() bool {
	return len(c.regions) == 0 && len(c.states) == 0 && len(c.municipalities) == 0 &&
		len(c.sizeClasses) == 0 && len(c.statuses) == 0
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two criteria restrict exactly the same values in
// every dimension.  This is the cache-key equality: both sides are already
// sorted and de-duplicated by construction.
func (c FilterCriteria) Equal(o FilterCriteria) bool {
	return equalSlices(c.regions, o.regions) &&
		equalSlices(c.states, o.states) &&
		equalSlices(c.municipalities, o.municipalities) &&
		equalSlices(c.sizeClasses, o.sizeClasses) &&
		equalSlices(c.statuses, o.statuses)
}

// Key renders the canonical string form of the criteria, suitable as a
// comparable cache key and as a log field.  Equal criteria always render
// the same key. Values are quoted so embedded separator characters cannot
// make two distinct criteria render identically.
func (c FilterCriteria) Key() string {
	var sb strings.Builder
	writeDim := func(name string, values []string) {
		sb.WriteString(name)
		sb.WriteByte('=')
		for i, v := range values {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(v))
		}
		sb.WriteByte(';')
	}
	writeDim("regiao", c.regions)
	writeDim("uf", c.states)
	writeDim("municipio", c.municipalities)
	writeDim("tamanho", c.sizeClasses)
	writeDim("status", c.statuses)
	return sb.String()
}

// PrimaryView returns the criteria the primary filtered dataset is computed
// with.  A state selection is more specific than a region selection, so when
// states are present the region restriction is dropped.
func (c FilterCriteria) PrimaryView() FilterCriteria {
	if len(c.states) == 0 {
		return c
	}
	out := c
	out.regions = nil
	return out
}

// OverviewView returns the criteria the regional-overview dataset is
// computed with: never restricted by state or municipality, so a selected
// state can be compared against all states of its region.  The region set
// is the explicit selection when present, otherwise the regions the
// selected states belong to.
func (c FilterCriteria) OverviewView() FilterCriteria {
	out := c
	out.states = nil
	out.municipalities = nil
	if len(out.regions) == 0 && len(c.states) > 0 {
		out.regions = RegionsForStates(c.states)
	}
	return out
}
