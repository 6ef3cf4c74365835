// Package plan implements the C12 load planner: given a user's field
// selection, intersect requested field ids with a block footer's local
// dictionaries to produce the local ids and per-pattern projections the
// record assembler needs. Grounded on original_source/include/variant_reader_filters.h
// and original_source/lib/core/variant_reader_objects.cpp's field-selection
// pass.
package plan

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/schema"
)

// Load is the user-facing field selection (§4.11 "Load{Core,AllInfo,
// AllFormat,Info(name|id),Format(name|id),Genotypes,Permutation,Minimum}"),
// built with functional options the way erigon-lib constructs request
// structs.
type Load struct {
	core        bool
	allInfo     bool
	allFormat   bool
	infoIDs     map[uint32]struct{}
	formatIDs   map[uint32]struct{}
	genotypes   bool
	permutation bool
	minimum     bool
}

// Option configures a Load selection.
type Option func(*Load)

// WithCore requests the fixed base columns (contig, position, ref/alt,
// qual, names, filters) with no INFO/FORMAT/genotype payload.
func WithCore() Option { return func(l *Load) { l.core = true } }

// WithAllInfo requests every INFO field present in the archive.
func WithAllInfo() Option { return func(l *Load) { l.allInfo = true } }

// WithAllFormat requests every FORMAT field present in the archive.
func WithAllFormat() Option { return func(l *Load) { l.allFormat = true } }

// WithInfoID requests one INFO field by its archive-global id.
func WithInfoID(id uint32) Option {
	return func(l *Load) {
		if l.infoIDs == nil {
			l.infoIDs = make(map[uint32]struct{})
		}
		l.infoIDs[id] = struct{}{}
	}
}

// WithInfo requests one INFO field by name, resolved against the archive's
// global header.
func WithInfo(name string, header *schema.Header) Option {
	return func(l *Load) {
		if id, ok := header.InfoIDByName(name); ok {
			WithInfoID(id)(l)
		}
	}
}

// WithFormatID requests one FORMAT field by its archive-global id.
func WithFormatID(id uint32) Option {
	return func(l *Load) {
		if l.formatIDs == nil {
			l.formatIDs = make(map[uint32]struct{})
		}
		l.formatIDs[id] = struct{}{}
	}
}

// WithFormat requests one FORMAT field by name, resolved against the
// archive's global header.
func WithFormat(name string, header *schema.Header) Option {
	return func(l *Load) {
		if id, ok := header.FormatIDByName(name); ok {
			WithFormatID(id)(l)
		}
	}
}

// WithGenotypes requests genotype decoding.
func WithGenotypes() Option { return func(l *Load) { l.genotypes = true } }

// WithPermutation requests PPA inversion when reconstructing per-sample
// order (no effect if the block wasn't permuted).
func WithPermutation() Option { return func(l *Load) { l.permutation = true } }

// WithMinimum records a request for the smallest projection. Build does not
// read this flag, so it does not change the computed Plan.
func WithMinimum() Option { return func(l *Load) { l.minimum = true } }

// NewLoad builds a Load selection from the given options.
func NewLoad(opts ...Option) *Load {
	l := &Load{}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Plan is the read-time projection computed for one block: which local
// INFO/FORMAT stream indices to decode, and, per pattern, which of a
// variant's present fields are actually loaded (§4.11). Load planning never
// modifies the block itself.
type Plan struct {
	InfoIDLocalLoaded   []int
	FormatIDLocalLoaded []int

	InfoPatternsLocal   [][]int
	FormatPatternsLocal [][]int

	LoadCore        bool
	LoadGenotypes   bool
	LoadPermutation bool
}

// Build computes a Plan for one block footer under the given Load
// selection (§4.11). Requested and block-local field-id sets are built as
// roaring bitmaps and intersected via And, which both de-duplicates and
// gives the sorted-ascending-by-global-id order the spec requires for
// info_id_local_loaded/format_id_local_loaded for free.
func Build(l *Load, footer *block.Footer) *Plan {
	p := &Plan{
		LoadCore:        l.core,
		LoadGenotypes:   l.genotypes,
		LoadPermutation: l.permutation,
	}

	infoLoaded := intersectDict(footer.InfoDict, l.allInfo, l.infoIDs)
	formatLoaded := intersectDict(footer.FormatDict, l.allFormat, l.formatIDs)

	p.InfoIDLocalLoaded = localIndicesSortedByGlobalID(footer.InfoDict, infoLoaded)
	p.FormatIDLocalLoaded = localIndicesSortedByGlobalID(footer.FormatDict, formatLoaded)

	p.InfoPatternsLocal = patternsLocal(footer.InfoPatterns, footer.InfoDict, infoLoaded)
	p.FormatPatternsLocal = patternsLocal(footer.FormatPatterns, footer.FormatDict, formatLoaded)

	return p
}

// intersectDict returns the set of global ids from dict that are requested,
// via a roaring-bitmap intersection of "every global id in dict" against
// "every requested global id" (or the full dict, if all was requested).
func intersectDict(dict []uint32, all bool, requested map[uint32]struct{}) *roaring.Bitmap {
	present := roaring.New()
	for _, id := range dict {
		present.Add(id)
	}
	if all {
		return present
	}
	want := roaring.New()
	for id := range requested {
		want.Add(id)
	}
	return roaring.And(present, want)
}

// localIndicesSortedByGlobalID maps loaded's global ids back to their local
// index in dict, in ascending global-id order (roaring.Bitmap's iterator is
// already sorted ascending, so no extra sort is needed).
func localIndicesSortedByGlobalID(dict []uint32, loaded *roaring.Bitmap) []int {
	localOf := make(map[uint32]int, len(dict))
	for i, id := range dict {
		localOf[id] = i
	}
	var out []int
	it := loaded.Iterator()
	for it.HasNext() {
		out = append(out, localOf[it.Next()])
	}
	return out
}

// patternsLocal reduces each pattern's ordered local-id list to the subset
// that is actually loaded, preserving the pattern's own ordering (§4.11
// "for each pattern in the block, the list of loaded local ids within it").
func patternsLocal(ps *block.PatternSet, dict []uint32, loadedGlobal *roaring.Bitmap) [][]int {
	out := make([][]int, ps.Len())
	for i, pat := range ps.All() {
		var ids []int
		for _, localID := range pat.LocalIDs {
			if int(localID) < len(dict) && loadedGlobal.Contains(dict[localID]) {
				ids = append(ids, int(localID))
			}
		}
		out[i] = ids
	}
	return out
}
