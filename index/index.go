package index

import (
	"fmt"

	"github.com/tachyon-archive/tachyon/common"
)

// ensureQuad returns (minting if necessary) the quad-tree for contigID,
// sized to contigLength. The tree is built once, on first use; later calls
// for the same contig reuse it regardless of the contigLength argument.
func (ix *Index) ensureQuad(contigID uint32, contigLength int64) *quadTree {
	q, ok := ix.quads[contigID]
	if !ok {
		q = newQuadTree(contigLength, ix.quadLevels)
		ix.quads[contigID] = q
	}
	return q
}

// IndexRecord inserts one record's span into contigID's quad-tree (§4.9
// "IndexRecord(record, block_id) additionally inserts into the per-contig
// quad-tree"). contigLength sizes the tree the first time this contig is
// seen; from/to is the record's position span (from==to for a
// single-position variant).
func (ix *Index) IndexRecord(contigID uint32, from, to int64, contigLength int64, blockID uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	q := ix.ensureQuad(contigID, contigLength)
	q.insert(from, to, blockID)
}

// FindOverlap returns the deduplicated union of (a) linear entries whose
// span intersects [start,end] and (b) quad-tree bins at any level whose
// footprint intersects [start,end] (§4.9, P9).
func (ix *Index) FindOverlap(contigID uint32, start, end int64) []uint32 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[uint32]struct{})
	for _, e := range ix.linearOverlap(contigID, start, end) {
		seen[e.BlockID] = struct{}{}
	}
	if q, ok := ix.quads[contigID]; ok {
		for _, id := range q.overlapping(start, end) {
			seen[id] = struct{}{}
		}
	}
	return sortedBlockIDs(seen)
}

// Merge absorbs another Index's linear entries, roll-ups and quad-tree bins
// into ix, failing with ErrFormat when a contig's quad-trees in the two
// indexes differ in shape; spans are not checked for regression
// (original_source/include/index.h's Index::operator+=). Used to combine
// indexes built by independent parallel importers before a single archive
// write.
func (ix *Index) Merge(other *Index) error {
	if other == nil {
		return nil
	}
	ix.mu.Lock()
	other.mu.Lock()
	defer other.mu.Unlock()
	defer ix.mu.Unlock()

	var entries []Entry
	other.linear.Ascend(func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	for _, e := range entries {
		ix.linear.ReplaceOrInsert(e)
	}

	for contigID, os := range other.rollups {
		s, ok := ix.rollups[contigID]
		if !ok {
			cp := *os
			ix.rollups[contigID] = &cp
			continue
		}
		s.NBlocks += os.NBlocks
		if os.hasSpan {
			if !s.hasSpan || os.MinPos < s.MinPos {
				s.MinPos = os.MinPos
			}
			if !s.hasSpan || os.MaxPos > s.MaxPos {
				s.MaxPos = os.MaxPos
			}
			s.hasSpan = true
		}
	}

	for contigID, oq := range other.quads {
		q, ok := ix.quads[contigID]
		if !ok {
			ix.quads[contigID] = oq
			continue
		}
		if q.maxLevel != oq.maxLevel || q.leafWidth != oq.leafWidth {
			return fmt.Errorf("%w: index: merge: contig %d has incompatibly shaped quad-tree", common.ErrFormat, contigID)
		}
		for l := range q.bins {
			for bin, ids := range oq.bins[l] {
				existing := q.bins[l][bin]
				for _, id := range ids {
					if n := len(existing); n == 0 || existing[n-1] != id {
						existing = append(existing, id)
					}
				}
				q.bins[l][bin] = existing
			}
		}
	}
	return nil
}
