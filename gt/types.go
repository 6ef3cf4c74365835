// Package gt implements the C6 genotype codecs: diploid-biallelic RLE
// (M1), diploid n-allelic RLE (M2), the diploid BCF-style fallback (M3),
// and n-ploid RLE (M4), selected by the assess-then-emit cost model of
// §4.6. Grounded on
// original_source/tachyon/algorithm/compression/genotype_encoder.cpp.
package gt

// Allele is a single haplotype's allele code as it arrives from the
// importer: -1 = MISSING, -2 = EOV, 0 = REF, n>=1 = the n-th ALT.
type Allele = int32

const (
	SourceMissing Allele = -1
	SourceEOV     Allele = -2
)

// Internal genotype alphabet shared by M2/M3/M4 (§4.6): "Internal alphabet
// is {0:missing, 1:EOV, 2:REF, 3:first ALT, …}".
const (
	InternalMissing int32 = 0
	InternalEOV     int32 = 1
	InternalRefBase int32 = 2
)

// toInternal maps a source Allele to the internal alphabet code.
func toInternal(a Allele) int32 {
	switch a {
	case SourceMissing:
		return InternalMissing
	case SourceEOV:
		return InternalEOV
	default:
		return a + InternalRefBase
	}
}

func fromInternal(v int32) Allele {
	switch v {
	case InternalMissing:
		return SourceMissing
	case InternalEOV:
		return SourceEOV
	default:
		return v - InternalRefBase
	}
}

// Sample is one sample's genotype call for a variant.
type Sample struct {
	// Alleles holds Ploidy entries; for diploid sites Alleles[0]/[1] are
	// the two haplotype calls.
	Alleles []Allele
	Phase   bool
}

// Method identifies which of the four genotype codecs encoded a variant.
type Method uint8

const (
	MethodM1 Method = iota + 1 // diploid biallelic RLE
	MethodM2                   // diploid n-allelic RLE
	MethodM3                   // diploid BCF-style fallback
	MethodM4                   // n-ploid RLE
)

// WordWidth is the chosen RLE run-word width (gt_primitive_type, 2 bits in
// the variant controller).
type WordWidth uint8

const (
	Word8 WordWidth = iota
	Word16
	Word32
	Word64
)

func (w WordWidth) Bits() int {
	switch w {
	case Word8:
		return 8
	case Word16:
		return 16
	case Word32:
		return 32
	default:
		return 64
	}
}

func (w WordWidth) Bytes() int { return w.Bits() / 8 }

// Run is one decoded RLE run: Length consecutive samples share
// (AlleleA, AlleleB, Phase) for M1/M2/M3, or NAllele for M4.
type Run struct {
	Length   uint64
	AlleleA  int32 // source allele code, mapped back from the packed field
	AlleleB  int32
	Phase    bool
	NAllele  []int32 // used only by M4, length == ploidy
}

// Encoded is the result of Encode: the chosen method/word/shift plus the
// serialized run words ready to append verbatim to the method's base
// stream via container.AddLiteral, and the per-variant run count for the
// companion GT_SUPPORT stream.
type Encoded struct {
	Method      Method
	Word        WordWidth
	Shift       int
	MixedPhase  bool
	GlobalPhase bool
	NRuns       int
	Bytes       []byte
}
