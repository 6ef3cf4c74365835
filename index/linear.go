// Package index implements the C9 variant index: a linear index ordered by
// (contig_id, min_pos) backed by google/btree, per-contig roll-up summaries,
// and a per-contig quad-tree for range queries. Grounded on
// original_source/include/index.h and original_source/lib/index/index_entry.h.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/tachyon-archive/tachyon/common"
)

// Entry is one linear-index record: the span of positions a block covers on
// one contig (index.h's IndexEntry).
type Entry struct {
	ContigID uint32
	MinPos   int64
	MaxPos   int64
	BlockID  uint32
}

func lessEntry(a, b Entry) bool {
	if a.ContigID != b.ContigID {
		return a.ContigID < b.ContigID
	}
	if a.MinPos != b.MinPos {
		return a.MinPos < b.MinPos
	}
	return a.BlockID < b.BlockID
}

// ContigSummary is the per-contig roll-up aggregate maintained as blocks are
// appended (index.h's IndexEntryContig): block count and observed position
// span.
type ContigSummary struct {
	NBlocks uint32
	MinPos  int64
	MaxPos  int64
	hasSpan bool
}

// Index is the C9 variant index: a linear B-tree of block spans, per-contig
// roll-up summaries, and a per-contig quad-tree for sub-block range queries.
type Index struct {
	mu sync.Mutex

	linear     *btree.BTreeG[Entry]
	rollups    map[uint32]*ContigSummary
	quads      map[uint32]*quadTree
	quadLevels int
	lastContig uint32
	haveLast   bool
}

// Option configures an Index.
type Option func(*Index)

// WithQuadTreeLevels sets the per-contig quad-tree depth (default 6, giving
// 4^6 = 4096 leaf bins per contig).
func WithQuadTreeLevels(n int) Option {
	return func(ix *Index) { ix.quadLevels = n }
}

// New returns an empty Index.
func New(opts ...Option) *Index {
	ix := &Index{
		linear:     btree.NewG(32, lessEntry),
		rollups:    make(map[uint32]*ContigSummary),
		quads:      make(map[uint32]*quadTree),
		quadLevels: 6,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// AddSorted appends one block's span to the linear index (§4.9
// "AddSorted(contig_id, from, to, block_id)"), merging into the contig-level
// roll-up. Blocks must be added in non-decreasing (contig_id, from) order
// (§5 "AddSorted ... requires strictly non-decreasing (contig_id, from_pos),
// this is the importer's obligation").
func (ix *Index) AddSorted(contigID uint32, from, to int64, blockID uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.haveLast && contigID < ix.lastContig {
		return fmt.Errorf("%w: index: AddSorted contig %d precedes previously added contig %d",
			common.ErrFormat, contigID, ix.lastContig)
	}
	ix.lastContig, ix.haveLast = contigID, true

	ix.linear.ReplaceOrInsert(Entry{ContigID: contigID, MinPos: from, MaxPos: to, BlockID: blockID})

	s, ok := ix.rollups[contigID]
	if !ok {
		s = &ContigSummary{}
		ix.rollups[contigID] = s
	}
	s.NBlocks++
	if !s.hasSpan {
		s.MinPos, s.MaxPos, s.hasSpan = from, to, true
	} else {
		if from < s.MinPos {
			s.MinPos = from
		}
		if to > s.MaxPos {
			s.MaxPos = to
		}
	}
	return nil
}

// ContigSummary returns the roll-up for a contig, if any block has been
// added for it.
func (ix *Index) ContigSummary(contigID uint32) (ContigSummary, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	s, ok := ix.rollups[contigID]
	if !ok {
		return ContigSummary{}, false
	}
	return *s, true
}

// linearOverlap returns every linear entry on contigID whose [MinPos,MaxPos]
// intersects [start,end].
func (ix *Index) linearOverlap(contigID uint32, start, end int64) []Entry {
	var out []Entry
	pivot := Entry{ContigID: contigID, MinPos: 0}
	ix.linear.AscendGreaterOrEqual(pivot, func(e Entry) bool {
		if e.ContigID != contigID {
			return false
		}
		if e.MinPos > end {
			return false
		}
		if e.MaxPos >= start {
			out = append(out, e)
		}
		return true
	})
	return out
}

// sortedBlockIDs returns ids sorted and deduplicated, used to present a
// stable FindOverlap result.
func sortedBlockIDs(ids map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
