// Package block implements the C7/C8 variant block: the writer that
// accumulates records into typed streams and seals them into a
// self-contained unit, and the reader that loads one back footer-first.
// Grounded on original_source/include/variant_block.h,
// original_source/include/header_footer.h and
// original_source/lib/containers/variant_block.cpp.
package block

import "github.com/tachyon-archive/tachyon/container"

// Genotype is the producer-side genotype payload for one variant (§6
// "consumed from importer"): ploidy, a phased flag per sample, and the
// flattened allele codes (n_samples*ploidy long, -1=MISSING, -2=EOV).
type Genotype struct {
	Ploidy  int
	Phased  []bool
	Alleles []int32
}

// InfoField is one INFO value attached to a record. Exactly one of
// Ints/Floats/Raw is populated, matching WireType.
type InfoField struct {
	GlobalID uint32
	WireType container.Type
	Ints     []int32
	Floats   []float32
	Raw      []byte
}

// FormatField is one per-sample FORMAT value attached to a record. Exactly
// one of PerSampleInts/PerSampleFloats is populated (outer length ==
// n_samples), matching WireType.
type FormatField struct {
	GlobalID        uint32
	WireType        container.Type
	PerSampleInts   [][]int32
	PerSampleFloats [][]float32
}

// Record is the decoded row the importer hands the block writer (§6).
type Record struct {
	ContigID uint32
	Position int64 // 0-based
	Name     string
	Ref      string
	Alts     []string
	HasQual  bool
	Qual     float32

	FilterGlobalIDs []uint32
	Info            []InfoField
	Format          []FormatField
	GT              *Genotype
}
