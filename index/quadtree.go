package index

// quadTree is the per-contig spatial index (§4.9, P8): a fixed number of
// quartering levels over [0, contigLength), each record placed once, at the
// deepest level whose bin fully contains the record's span. Bins store
// block ids deduplicated against the most recently appended id only
// (§4.9 "adding block_id to that bin's block-set, deduplicated against the
// most recent insert to avoid duplicates within a block"), not a
// roaring.Bitmap: Roaring reorders by value and insertion order must
// survive for the dedup-against-last check to be meaningful.
type quadTree struct {
	maxLevel  int
	leafWidth int64
	widths    []int64 // widths[l] is the bin width at level l, widths[maxLevel] == leafWidth
	bins      []map[int64][]uint32
}

func newQuadTree(contigLength int64, maxLevel int) *quadTree {
	if contigLength <= 0 {
		contigLength = 1
	}
	leaves := int64(1)
	for i := 0; i < maxLevel; i++ {
		leaves *= 4
	}
	leafWidth := (contigLength + leaves - 1) / leaves
	if leafWidth <= 0 {
		leafWidth = 1
	}

	widths := make([]int64, maxLevel+1)
	w := leafWidth
	for l := maxLevel; l >= 0; l-- {
		widths[l] = w
		w *= 4
	}

	bins := make([]map[int64][]uint32, maxLevel+1)
	for l := range bins {
		bins[l] = make(map[int64][]uint32)
	}

	return &quadTree{maxLevel: maxLevel, leafWidth: leafWidth, widths: widths, bins: bins}
}

// deepestLevel returns the deepest level at which [f,t] lies in a single
// bin (P8): binWidth(l) = widths[l]; once f and t diverge into different
// bins at some level, every finer level keeps them divergent, since each
// bin splits into four disjoint sub-bins one level down.
func (q *quadTree) deepestLevel(f, t int64) int {
	level := 0
	for l := 1; l <= q.maxLevel; l++ {
		if f/q.widths[l] != t/q.widths[l] {
			break
		}
		level = l
	}
	return level
}

// insert places blockID into the bin at the deepest level containing
// [f,t], deduplicating against the most recently appended id in that bin.
func (q *quadTree) insert(f, t int64, blockID uint32) {
	level := q.deepestLevel(f, t)
	binIdx := f / q.widths[level]
	bucket := q.bins[level][binIdx]
	if n := len(bucket); n > 0 && bucket[n-1] == blockID {
		return
	}
	q.bins[level][binIdx] = append(bucket, blockID)
}

// overlapping returns every block id in any bin at any level whose
// footprint intersects [start,end].
func (q *quadTree) overlapping(start, end int64) []uint32 {
	var out []uint32
	for l := 0; l <= q.maxLevel; l++ {
		width := q.widths[l]
		first := start / width
		last := end / width
		for bin := first; bin <= last; bin++ {
			out = append(out, q.bins[l][bin]...)
		}
	}
	return out
}
