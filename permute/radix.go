// Package permute implements the C5 sample-permutation radix sort: a
// 9-way, stable, multi-pass sort over qualifying diploid-biallelic sites
// that clusters samples with identical genotypes for later RLE (§4.5).
package permute

// AlleleValue is the compact 2-bit-per-allele code used only by the radix
// sort, distinct from the genotype codec's internal alphabet (§4.6):
// 0 = reference homozygous code base, 1 = missing, 2 = alternate.
type AlleleValue uint8

const (
	AlleleRef     AlleleValue = 0
	AlleleMissing AlleleValue = 1
	AlleleAlt     AlleleValue = 2
)

// binTarget maps a packed two-allele code (alleleA*4 + alleleB, each allele
// in {0,1,2}) to its output bin, reproduced bin-for-bin from
// original_source/tachyon/algorithm/permutation/radix_sort_gt.cpp's switch
// table: 0->0, 1->3, 2->4, 4->2, 5->1, 6->5, 8->6, 9->7, 10->8.
var binTarget = map[uint8]int{
	0:  0,
	1:  3,
	2:  4,
	4:  2,
	5:  1,
	6:  5,
	8:  6,
	9:  7,
	10: 8,
}

func code(a, b AlleleValue) uint8 {
	return uint8(a)*4 + uint8(b)
}

// Site is one qualifying record's per-sample allele pair, indexed by
// original sample index. Only sites with Qualifies(ploidy, nAllele,
// hasEOV) == true belong here.
type Site struct {
	AlleleA []AlleleValue
	AlleleB []AlleleValue
}

// Qualifies reports whether a record participates in the permutation
// radix sort: diploid, biallelic, no end-of-vector markers (§4.5).
func Qualifies(ploidy, nAllele int, hasEOV bool) bool {
	return ploidy == 2 && nAllele == 2 && !hasEOV
}

// Build runs the radix sort over the given qualifying sites in order,
// returning the final PPA: PPA[i] is the original sample index placed at
// storage rank i. Non-qualifying sites must already be excluded from sites
// by the caller — they do not reorder the running permutation.
func Build(nSamples int, sites []Site) []uint32 {
	order := make([]uint32, nSamples)
	for i := range order {
		order[i] = uint32(i)
	}

	for _, site := range sites {
		var bins [9][]uint32
		for _, s := range order {
			g := code(site.AlleleA[s], site.AlleleB[s])
			b := binTarget[g]
			bins[b] = append(bins[b], s)
		}
		next := make([]uint32, 0, nSamples)
		for _, bin := range bins {
			next = append(next, bin...)
		}
		order = next
	}
	return order
}

// Invert returns ppaInv such that ppaInv[ppa[i]] == i: applying it to a
// permuted per-sample output reconstructs the original sample-index order
// (P3).
func Invert(ppa []uint32) []uint32 {
	inv := make([]uint32, len(ppa))
	for i, orig := range ppa {
		inv[orig] = uint32(i)
	}
	return inv
}
