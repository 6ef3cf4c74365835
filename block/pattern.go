package block

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/tachyon-archive/tachyon/common"
)

// Pattern is the ordered multiset of local field ids present on at least
// one variant in the block (glossary "Pattern"), stored both as its
// ordered id list and as a compact bit-vector (§3 "Variant-block footer").
type Pattern struct {
	LocalIDs []uint32
	Bits     []byte
}

// PatternSet de-duplicates patterns observed while writing a block (one
// instance each for INFO, FORMAT and FILTER, per §4.7 "AddPattern hashes
// the ordered global-id list and de-duplicates").
type PatternSet struct {
	patterns []Pattern
	byHash   map[uint64][]int
}

func newPatternSet() *PatternSet {
	return &PatternSet{byHash: make(map[uint64][]int)}
}

// Add returns the local pattern index for localIDs, minting a new entry if
// this exact ordered id list hasn't been seen before. nFields is the
// current size of the owning dictionary, used to size the bit-vector.
func (p *PatternSet) Add(localIDs []uint32, nFields int) int {
	h := hashIDs(localIDs)
	for _, idx := range p.byHash[h] {
		if idsEqual(p.patterns[idx].LocalIDs, localIDs) {
			return idx
		}
	}
	idx := len(p.patterns)
	p.patterns = append(p.patterns, Pattern{
		LocalIDs: append([]uint32(nil), localIDs...),
		Bits:     bitsForIDs(localIDs, nFields),
	})
	p.byHash[h] = append(p.byHash[h], idx)
	return idx
}

// Len returns the number of distinct patterns recorded.
func (p *PatternSet) Len() int { return len(p.patterns) }

// At returns the pattern at local index idx.
func (p *PatternSet) At(idx int) Pattern { return p.patterns[idx] }

// All returns every pattern in insertion order.
func (p *PatternSet) All() []Pattern { return p.patterns }

// newPatternSetFromPatterns rebuilds a PatternSet from patterns read off
// the wire, used by the reader (no re-hashing needed since ids are never
// looked up by content again after a block is sealed).
func newPatternSetFromPatterns(patterns []Pattern) *PatternSet {
	return &PatternSet{patterns: patterns, byHash: make(map[uint64][]int)}
}

// NewPatternSet builds a PatternSet directly from a fixed slice of patterns,
// for callers (e.g. the load planner's tests) that need a Footer fixture
// without driving a full block Writer.
func NewPatternSet(patterns []Pattern) *PatternSet {
	return newPatternSetFromPatterns(patterns)
}

func hashIDs(ids []uint32) uint64 {
	buf := make([]byte, len(ids)*4)
	for i, id := range ids {
		buf[i*4] = byte(id)
		buf[i*4+1] = byte(id >> 8)
		buf[i*4+2] = byte(id >> 16)
		buf[i*4+3] = byte(id >> 24)
	}
	return xxhash.Sum64(buf)
}

func idsEqual(a, b []uint32) bool {
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

// bitsForIDs builds the fixed ⌈nFields/8⌉-byte bit-vector for localIDs
// (§4.7 step 2), satisfying P7: bits[i]=1 iff i appears in localIDs. The
// membership set itself is built as a roaring bitmap so duplicate or
// out-of-order ids from the caller collapse for free before the positional
// wire vector is rendered.
func bitsForIDs(localIDs []uint32, nFields int) []byte {
	rb := roaring.New()
	rb.AddMany(localIDs)
	bits := make([]byte, common.CeilDiv(nFields, 8))
	it := rb.Iterator()
	for it.HasNext() {
		id := it.Next()
		bits[id/8] |= 1 << (id % 8)
	}
	return bits
}
