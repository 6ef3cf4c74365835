package gt

import (
	"github.com/tachyon-archive/tachyon/iobuf"
)

// DecodeM1 expands an M1 run stream into one Run per record (§4.6 "M1").
func DecodeM1(data []byte, word WordWidth, shift int, mixedPhase, globalPhase bool) ([]Run, error) {
	runs, err := decodeDiploidRuns(data, word, shift, phaseAdd(mixedPhase), true)
	if err != nil {
		return nil, err
	}
	if !mixedPhase {
		for i := range runs {
			runs[i].Phase = globalPhase
		}
	}
	return runs, nil
}

// DecodeM2 expands an M2 run stream into one Run per record (§4.6 "M2").
func DecodeM2(data []byte, word WordWidth, shift int, mixedPhase, globalPhase bool) ([]Run, error) {
	runs, err := decodeDiploidRuns(data, word, shift, phaseAdd(mixedPhase), false)
	if err != nil {
		return nil, err
	}
	if !mixedPhase {
		for i := range runs {
			runs[i].Phase = globalPhase
		}
	}
	return runs, nil
}

// decodeDiploidRuns unpacks the shared M1/M2 run-word layout: [a: shift
// bits][b: shift bits][phase?: 1 bit][length: remaining bits]. isM1
// controls whether the allele fields are remapped back through m1Unpack.
func decodeDiploidRuns(data []byte, word WordWidth, shift, add int, isM1 bool) ([]Run, error) {
	if len(data)%word.Bytes() != 0 {
		return nil, ErrBadRunStream
	}
	r := iobuf.NewReader(data)
	headerBits := 2*shift + add
	mask := uint64(1)<<uint(shift) - 1

	var runs []Run
	for r.Len() > 0 {
		v, err := readWord(r, word)
		if err != nil {
			return nil, err
		}
		a := v & mask
		b := (v >> uint(shift)) & mask
		var phase bool
		if add != 0 {
			phase = (v>>uint(2*shift))&1 == 1
		}
		length := v >> uint(headerBits)

		var ia, ib int32
		if isM1 {
			ia, ib = m1Unpack(uint8(a)), m1Unpack(uint8(b))
		} else {
			ia, ib = int32(a), int32(b)
		}
		runs = append(runs, Run{
			Length:  length,
			AlleleA: fromInternal(ia),
			AlleleB: fromInternal(ib),
			Phase:   phase,
		})
	}
	return runs, nil
}

// DecodeM3 expands the diploid BCF-style fallback: one fixed-width word per
// sample, no run-length compression (§4.6 "BCF fallback").
func DecodeM3(data []byte, word WordWidth, shift int, mixedPhase, globalPhase bool) ([]Run, error) {
	if len(data)%word.Bytes() != 0 {
		return nil, ErrBadRunStream
	}
	r := iobuf.NewReader(data)
	add := phaseAdd(mixedPhase)
	mask := uint64(1)<<uint(shift) - 1

	var runs []Run
	for r.Len() > 0 {
		v, err := readWord(r, word)
		if err != nil {
			return nil, err
		}
		a := v & mask
		b := (v >> uint(shift)) & mask
		phase := globalPhase
		if add != 0 {
			phase = (v>>uint(2*shift))&1 == 1
		}
		runs = append(runs, Run{
			Length:  1,
			AlleleA: fromInternal(int32(a)),
			AlleleB: fromInternal(int32(b)),
			Phase:   phase,
		})
	}
	return runs, nil
}

// DecodeM4 expands an M4 run stream for an arbitrary ploidy: one word per
// run holding [length: payloadBits][allele_0..allele_{ploidy-1}: shift bits
// each][phase: 1 bit] (§4.6 "M4").
func DecodeM4(data []byte, word WordWidth, shift, ploidy int, globalPhase bool) ([]Run, error) {
	if len(data)%word.Bytes() != 0 {
		return nil, ErrBadRunStream
	}
	r := iobuf.NewReader(data)
	headerBits := ploidy*shift + 1
	payloadBits := word.Bits() - headerBits
	lenMask := uint64(1)<<uint(payloadBits) - 1
	alleleMask := uint64(1)<<uint(shift) - 1

	var runs []Run
	for r.Len() > 0 {
		v, err := readWord(r, word)
		if err != nil {
			return nil, err
		}
		length := v & lenMask
		alleles := make([]int32, ploidy)
		for i := 0; i < ploidy; i++ {
			internal := (v >> uint(payloadBits+i*shift)) & alleleMask
			alleles[i] = fromInternal(int32(internal))
		}
		phase := (v>>uint(payloadBits+ploidy*shift))&1 == 1
		_ = globalPhase
		runs = append(runs, Run{
			Length:  length,
			NAllele: alleles,
			Phase:   phase,
		})
	}
	return runs, nil
}
