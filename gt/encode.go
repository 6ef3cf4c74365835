package gt

import (
	"fmt"

	"github.com/tachyon-archive/tachyon/iobuf"
)

// scanFlags walks a variant's samples once to learn whether MISSING/EOV
// occur and whether phasing is mixed across samples (§4.6 "Assessment").
func scanFlags(samples []Sample) (hasMissing, hasEOV, mixedPhase bool) {
	if len(samples) == 0 {
		return false, false, false
	}
	first := samples[0].Phase
	for _, s := range samples {
		for _, a := range s.Alleles {
			switch a {
			case SourceMissing:
				hasMissing = true
			case SourceEOV:
				hasEOV = true
			}
		}
		if s.Phase != first {
			mixedPhase = true
		}
	}
	return hasMissing, hasEOV, mixedPhase
}

// Encode chooses one of the four genotype codecs for a variant's sample
// column and serializes the resulting RLE run stream, per the
// assess-then-emit model of §4.6: M1 for diploid biallelic sites without
// EOV, M2/M3 (whichever is cheaper) for diploid sites that don't qualify
// for M1, and M4 for every other ploidy.
func Encode(samples []Sample, ploidy, nAllele int, globalPhase bool) (Encoded, error) {
	if ploidy != 2 {
		return encodeM4(samples, ploidy, globalPhase)
	}

	hasMissing, hasEOV, mixedPhase := scanFlags(samples)
	if nAllele == 2 && !hasEOV {
		return encodeM1(samples, hasMissing, mixedPhase, globalPhase)
	}

	m2, m2Cost := tryM2(samples, nAllele, hasMissing, hasEOV, mixedPhase, globalPhase)
	costBCF := len(samples) * bcfWordBytes(nAllele)
	if m2Cost <= costBCF {
		return m2, nil
	}
	return encodeM3(samples, nAllele, mixedPhase, globalPhase)
}

func phaseAdd(mixedPhase bool) int {
	if mixedPhase {
		return 1
	}
	return 0
}

func packSeq(samples []Sample, pack func(int32) uint8) []packed2 {
	seq := make([]packed2, len(samples))
	for i, s := range samples {
		a := toInternal(s.Alleles[0])
		b := toInternal(s.Alleles[1])
		seq[i] = packed2{a: int32(pack(a)), b: int32(pack(b)), phase: s.Phase}
	}
	return seq
}

func encodeM1(samples []Sample, hasMissing, mixedPhase, globalPhase bool) (Encoded, error) {
	shift := m1Shift(hasMissing)
	add := phaseAdd(mixedPhase)
	seq := packSeq(samples, m1Pack)
	word, nRuns := chooseWidth(seq, shift, add)
	buf, err := writeRuns(seq, word, shift, add)
	if err != nil {
		return Encoded{}, fmt.Errorf("gt: encode M1: %w", err)
	}
	return Encoded{
		Method:      MethodM1,
		Word:        word,
		Shift:       shift,
		MixedPhase:  mixedPhase,
		GlobalPhase: globalPhase,
		NRuns:       nRuns,
		Bytes:       buf,
	}, nil
}

func tryM2(samples []Sample, nAllele int, hasMissing, hasEOV, mixedPhase, globalPhase bool) (Encoded, int) {
	shift := m2Shift(nAllele, hasMissing, hasEOV)
	add := phaseAdd(mixedPhase)
	seq := packSeq(samples, func(v int32) uint8 { return uint8(v) })
	word, nRuns := chooseWidth(seq, shift, add)
	buf, err := writeRuns(seq, word, shift, add)
	if err != nil {
		return Encoded{}, len(samples) * 8 // unencodable: force BCF fallback
	}
	return Encoded{
		Method:      MethodM2,
		Word:        word,
		Shift:       shift,
		MixedPhase:  mixedPhase,
		GlobalPhase: globalPhase,
		NRuns:       nRuns,
		Bytes:       buf,
	}, nRuns * word.Bytes()
}

// encodeM3 is the diploid BCF-style fallback: one fixed-width word per
// sample (no run-length compression), used when M2's RLE cost exceeds the
// flat per-sample cost (§4.6 "BCF fallback").
func encodeM3(samples []Sample, nAllele int, mixedPhase, globalPhase bool) (Encoded, error) {
	wordBytes := bcfWordBytes(nAllele)
	word := wordWidthFromBytes(wordBytes)
	shift := m2Shift(nAllele, true, true)
	add := phaseAdd(mixedPhase)

	buf := iobuf.NewWriter(len(samples) * wordBytes)
	for _, s := range samples {
		a := toInternal(s.Alleles[0])
		b := toInternal(s.Alleles[1])
		var v uint64
		v = uint64(a) | uint64(b)<<uint(shift)
		if add != 0 && s.Phase {
			v |= 1 << uint(2*shift)
		}
		writeWord(buf, word, v)
	}
	return Encoded{
		Method:      MethodM3,
		Word:        word,
		Shift:       shift,
		MixedPhase:  mixedPhase,
		GlobalPhase: globalPhase,
		NRuns:       len(samples),
		Bytes:       buf.Bytes(),
	}, nil
}

// encodeM4 handles every non-diploid ploidy: one run-length-encoded word
// holding the run length plus one allele field per haplotype (§4.6 "M4").
func encodeM4(samples []Sample, ploidy int, globalPhase bool) (Encoded, error) {
	maxAllele := int32(0)
	hasMissing, hasEOV := false, false
	for _, s := range samples {
		for _, a := range s.Alleles {
			switch a {
			case SourceMissing:
				hasMissing = true
			case SourceEOV:
				hasEOV = true
			default:
				if a > maxAllele {
					maxAllele = a
				}
			}
		}
	}
	count := int(maxAllele) + 1 + 2
	_ = hasMissing
	_ = hasEOV
	shift := bitsFor(count)
	word := Word64
	headerBits := ploidy*shift + 1
	if headerBits > 32 {
		return Encoded{}, fmt.Errorf("gt: encode M4: ploidy %d too large for word width", ploidy)
	}
	if headerBits <= 16 {
		word = Word32
	}

	buf := iobuf.NewWriter(len(samples) * word.Bytes())
	nRuns := 0
	i := 0
	payloadBits := word.Bits() - headerBits
	maxLen := (uint64(1) << uint(payloadBits)) - 1
	for i < len(samples) {
		j := i + 1
		runLen := uint64(1)
		for j < len(samples) && sameGenotype(samples[i], samples[j]) && runLen < maxLen {
			j++
			runLen++
		}
		writeM4Run(buf, word, shift, payloadBits, samples[i], runLen)
		nRuns++
		i = j
	}
	return Encoded{
		Method:      MethodM4,
		Word:        word,
		Shift:       shift,
		MixedPhase:  false,
		GlobalPhase: globalPhase,
		NRuns:       nRuns,
		Bytes:       buf.Bytes(),
	}, nil
}

func sameGenotype(a, b Sample) bool {
	if a.Phase != b.Phase || len(a.Alleles) != len(b.Alleles) {
		return false
	}
	for i := range a.Alleles {
		if a.Alleles[i] != b.Alleles[i] {
			return false
		}
	}
	return true
}

// writeM4Run packs [length: payloadBits][allele_0..allele_{ploidy-1}: shift
// bits each][phase: 1 bit] into a single word, low bits first.
func writeM4Run(buf *iobuf.Writer, word WordWidth, shift, payloadBits int, s Sample, runLen uint64) {
	v := runLen
	base := payloadBits
	for i, a := range s.Alleles {
		v |= uint64(toInternal(a)) << uint(base+i*shift)
	}
	if s.Phase {
		v |= uint64(1) << uint(base+len(s.Alleles)*shift)
	}
	writeWord(buf, word, v)
}

// writeRuns serializes a diploid RLE run-word stream: each word packs
// (length, alleleA, alleleB[, phase]) via bit shifts, one word per run, per
// the layout negotiated by chooseWidth.
func writeRuns(seq []packed2, word WordWidth, shift, add int) ([]byte, error) {
	buf := iobuf.NewWriter(len(seq) * word.Bytes())
	headerBits := 2*shift + add
	payloadBits := word.Bits() - headerBits
	if payloadBits <= 0 {
		return nil, fmt.Errorf("gt: word width %d too small for field width %d", word.Bits(), headerBits)
	}
	maxLen := (uint64(1) << uint(payloadBits)) - 1

	if len(seq) == 0 {
		return buf.Bytes(), nil
	}
	emit := func(cur packed2, runLen uint64) {
		writeRunWord(buf, word, shift, add, cur, runLen)
	}

	cur := seq[0]
	runLen := uint64(1)
	for _, g := range seq[1:] {
		same := g.a == cur.a && g.b == cur.b && (add == 0 || g.phase == cur.phase)
		if same && runLen < maxLen {
			runLen++
			continue
		}
		emit(cur, runLen)
		cur = g
		runLen = 1
	}
	emit(cur, runLen)
	return buf.Bytes(), nil
}

func writeRunWord(buf *iobuf.Writer, word WordWidth, shift, add int, g packed2, runLen uint64) {
	headerBits := 2*shift + add
	v := runLen << uint(headerBits)
	v |= uint64(g.a)
	v |= uint64(g.b) << uint(shift)
	if add != 0 && g.phase {
		v |= uint64(1) << uint(2*shift)
	}
	writeWord(buf, word, v)
}
