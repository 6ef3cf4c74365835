package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/schema"
)

// fixtureFooter builds a block.Footer with three INFO fields (global ids
// 10, 20, 30 at local indices 0, 1, 2) and two patterns: {0,1} and {0,2}.
func fixtureFooter() *block.Footer {
	return &block.Footer{
		InfoDict:   []uint32{10, 20, 30},
		FormatDict: []uint32{40, 50},
		InfoPatterns: block.NewPatternSet([]block.Pattern{
			{LocalIDs: []uint32{0, 1}},
			{LocalIDs: []uint32{0, 2}},
		}),
		FormatPatterns: block.NewPatternSet([]block.Pattern{
			{LocalIDs: []uint32{0, 1}},
		}),
		FilterPatterns: block.NewPatternSet(nil),
	}
}

// TestBuildAllInfoLoadsEverything checks WithAllInfo/WithAllFormat load
// every local id, sorted by global id, and every pattern is loaded whole.
func TestBuildAllInfoLoadsEverything(t *testing.T) {
	footer := fixtureFooter()
	l := NewLoad(WithCore(), WithAllInfo(), WithAllFormat())
	p := Build(l, footer)

	require.True(t, p.LoadCore)
	require.Equal(t, []int{0, 1, 2}, p.InfoIDLocalLoaded)
	require.Equal(t, []int{0, 1}, p.FormatIDLocalLoaded)
	require.Equal(t, [][]int{{0, 1}, {0, 2}}, p.InfoPatternsLocal)
	require.Equal(t, [][]int{{0, 1}}, p.FormatPatternsLocal)
}

// TestBuildExplicitInfoIDFiltersPatterns checks that requesting a single
// INFO field (§4.11) reduces InfoIDLocalLoaded to that field alone and
// strips every pattern's loaded-local-id list down to the ids that
// survived the intersection (the bug fixed in patternsLocal).
func TestBuildExplicitInfoIDFiltersPatterns(t *testing.T) {
	footer := fixtureFooter()
	l := NewLoad(WithInfoID(20)) // local index 1
	p := Build(l, footer)

	require.Equal(t, []int{1}, p.InfoIDLocalLoaded)
	require.Empty(t, p.FormatIDLocalLoaded)

	// Pattern {0,1} keeps only local id 1; pattern {0,2} has none loaded.
	require.Equal(t, [][]int{{1}, nil}, p.InfoPatternsLocal)
}

// TestBuildMultipleExplicitIDsSortedByGlobalID checks the loaded local-id
// list comes back ordered by ascending global id regardless of request
// order, via the roaring-bitmap intersection's natural iteration order.
func TestBuildMultipleExplicitIDsSortedByGlobalID(t *testing.T) {
	footer := fixtureFooter()
	l := NewLoad(WithInfoID(30), WithInfoID(10))
	p := Build(l, footer)

	require.Equal(t, []int{0, 2}, p.InfoIDLocalLoaded)
	require.Equal(t, [][]int{{0}, {0, 2}}, p.InfoPatternsLocal)
}

// TestBuildNoSelectionLoadsNothing checks an empty Load produces empty
// projections rather than panicking on nil maps.
func TestBuildNoSelectionLoadsNothing(t *testing.T) {
	footer := fixtureFooter()
	p := Build(NewLoad(), footer)

	require.Empty(t, p.InfoIDLocalLoaded)
	require.Empty(t, p.FormatIDLocalLoaded)
	require.Equal(t, [][]int{nil, nil}, p.InfoPatternsLocal)
}

// TestWithInfoResolvesNameAgainstHeader checks name-based selection looks
// up the global id through schema.Header and loads the matching local
// field once the resolved id is present in the block's dictionary.
func TestWithInfoResolvesNameAgainstHeader(t *testing.T) {
	h := schema.New()
	id, err := h.AddInfo("DP", 0, "read depth")
	require.NoError(t, err)

	footer := &block.Footer{
		InfoDict:       []uint32{id},
		InfoPatterns:   block.NewPatternSet([]block.Pattern{{LocalIDs: []uint32{0}}}),
		FormatPatterns: block.NewPatternSet(nil),
		FilterPatterns: block.NewPatternSet(nil),
	}

	p := Build(NewLoad(WithInfo("DP", h)), footer)
	require.Equal(t, []int{0}, p.InfoIDLocalLoaded)
	require.Equal(t, [][]int{{0}}, p.InfoPatternsLocal)
}

// TestWithInfoUnknownNameIsNoOp checks an unresolvable name leaves the
// selection untouched instead of erroring.
func TestWithInfoUnknownNameIsNoOp(t *testing.T) {
	h := schema.New()
	footer := fixtureFooter()
	l := NewLoad(WithInfo("NOPE", h))
	p := Build(l, footer)
	require.Empty(t, p.InfoIDLocalLoaded)
}
