// Package testutil builds in-memory block.Record fixtures for the seed
// end-to-end scenarios (spec.md §8 "Seed end-to-end scenarios"), so every
// package that exercises one of them builds it the same way instead of
// re-deriving ad hoc genotype arrays. No VCF parsing lives here; importing
// real files is out of scope (§1 Non-goals).
package testutil

import (
	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/gt"
)

func phased(n int) []bool {
	p := make([]bool, n)
	for i := range p {
		p[i] = true
	}
	return p
}

// Scenario1Records returns seed scenario 1: one biallelic diploid site, 4
// samples, genotypes [0|0, 0|1, 1|1, ./.], REF=A ALT=T, uniformly phased.
func Scenario1Records(contigID uint32) []*block.Record {
	return []*block.Record{
		{
			ContigID: contigID,
			Position: 100,
			Name:     "rs1",
			Ref:      "A",
			Alts:     []string{"T"},
			HasQual:  true,
			Qual:     30,
			GT: &block.Genotype{
				Ploidy: 2,
				Phased: phased(4),
				Alleles: []int32{
					0, 0, // sample 0: 0|0
					0, 1, // sample 1: 0|1
					1, 1, // sample 2: 1|1
					gt.SourceMissing, gt.SourceMissing, // sample 3: .|.
				},
			},
		},
	}
}

// Scenario2Records returns seed scenario 2: one triallelic diploid site, 5
// samples [0/1, 1/2, 0/2, ./2, 2/2], unphased.
func Scenario2Records(contigID uint32) []*block.Record {
	return []*block.Record{
		{
			ContigID: contigID,
			Position: 200,
			Name:     "rs2",
			Ref:      "G",
			Alts:     []string{"A", "C"},
			HasQual:  true,
			Qual:     40,
			GT: &block.Genotype{
				Ploidy: 2,
				Phased: make([]bool, 5), // unphased
				Alleles: []int32{
					0, 1,
					1, 2,
					0, 2,
					gt.SourceMissing, 2,
					2, 2,
				},
			},
		},
	}
}

// Scenario3Records returns seed scenario 3: a mixed-ploidy site (haploid
// chrY-style block) with 3 samples, alleles [0, 1, .], stored at block
// ploidy 2 with an end-of-vector sentinel filling the unused second slot.
func Scenario3Records(contigID uint32) []*block.Record {
	return []*block.Record{
		{
			ContigID: contigID,
			Position: 300,
			Name:     "rsY",
			Ref:      "A",
			Alts:     []string{"G"},
			HasQual:  true,
			Qual:     25,
			GT: &block.Genotype{
				Ploidy: 2,
				Phased: make([]bool, 3),
				Alleles: []int32{
					0, gt.SourceEOV,
					1, gt.SourceEOV,
					gt.SourceMissing, gt.SourceEOV,
				},
			},
		},
	}
}

// Scenario4Records returns seed scenario 4: nSites biallelic diploid
// records over nSamples samples, alternating a handful of genotype
// patterns so the block isn't degenerately uniform, all uniformly phased
// (qualifying every site for permutation).
func Scenario4Records(contigID uint32, nSites, nSamples int) []*block.Record {
	patterns := [][2]int32{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	recs := make([]*block.Record, nSites)
	for i := 0; i < nSites; i++ {
		alleles := make([]int32, nSamples*2)
		for s := 0; s < nSamples; s++ {
			p := patterns[(i+s)%len(patterns)]
			alleles[s*2] = p[0]
			alleles[s*2+1] = p[1]
		}
		recs[i] = &block.Record{
			ContigID: contigID,
			Position: int64(i) * 10,
			Ref:      "A",
			Alts:     []string{"T"},
			HasQual:  true,
			Qual:     30,
			GT: &block.Genotype{
				Ploidy:  2,
				Phased:  phased(nSamples),
				Alleles: alleles,
			},
		}
	}
	return recs
}

// Scenario5InfoFloats returns seed scenario 5's raw payload: 1,000 float32
// values for a single INFO stream, meant to be written through an
// encrypted block and read back.
func Scenario5InfoFloats() []float32 {
	vals := make([]float32, 1000)
	for i := range vals {
		vals[i] = float32(i) * 0.5
	}
	return vals
}

// Scenario6Block is one of the three overlapping blocks in seed scenario 6
// (range query across block boundaries): contig length 1,024, 64 leaf
// bins (quad-tree level 3).
type Scenario6Block struct {
	Name         string
	MinPos       int64
	MaxPos       int64
	ContigLength int64
}

// Scenario6Blocks returns blocks A, B, C exactly as spec.md §8 scenario 6
// describes them: A covers [10,100], B covers [90,200], C covers
// [300,400], all on a contig of length 1,024.
func Scenario6Blocks() []Scenario6Block {
	return []Scenario6Block{
		{Name: "A", MinPos: 10, MaxPos: 100, ContigLength: 1024},
		{Name: "B", MinPos: 90, MaxPos: 200, ContigLength: 1024},
		{Name: "C", MinPos: 300, MaxPos: 400, ContigLength: 1024},
	}
}
