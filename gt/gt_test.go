package gt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sumRunLengths(runs []Run) uint64 {
	var total uint64
	for _, r := range runs {
		total += r.Length
	}
	return total
}

func TestM1RoundTrip(t *testing.T) {
	samples := []Sample{
		{Alleles: []Allele{0, 0}, Phase: true},
		{Alleles: []Allele{0, 0}, Phase: true},
		{Alleles: []Allele{0, 1}, Phase: true},
		{Alleles: []Allele{1, 1}, Phase: true},
		{Alleles: []Allele{1, 1}, Phase: true},
		{Alleles: []Allele{1, 1}, Phase: true},
	}
	enc, err := Encode(samples, 2, 2, true)
	require.NoError(t, err)
	require.Equal(t, MethodM1, enc.Method)

	runs, err := DecodeM1(enc.Bytes, enc.Word, enc.Shift, enc.MixedPhase, enc.GlobalPhase)
	require.NoError(t, err)
	require.Equal(t, uint64(len(samples)), sumRunLengths(runs))

	var got []Sample
	for _, r := range runs {
		for i := uint64(0); i < r.Length; i++ {
			got = append(got, Sample{Alleles: []Allele{r.AlleleA, r.AlleleB}, Phase: r.Phase})
		}
	}
	require.Equal(t, samples, got)
}

func TestM1WithMissing(t *testing.T) {
	samples := []Sample{
		{Alleles: []Allele{0, 0}, Phase: false},
		{Alleles: []Allele{SourceMissing, SourceMissing}, Phase: false},
		{Alleles: []Allele{0, 1}, Phase: false},
	}
	enc, err := Encode(samples, 2, 2, false)
	require.NoError(t, err)
	require.Equal(t, MethodM1, enc.Method)

	runs, err := DecodeM1(enc.Bytes, enc.Word, enc.Shift, enc.MixedPhase, enc.GlobalPhase)
	require.NoError(t, err)
	require.Equal(t, uint64(len(samples)), sumRunLengths(runs))
}

func TestM1FallsBackWhenEOVPresent(t *testing.T) {
	samples := []Sample{
		{Alleles: []Allele{0, 0}},
		{Alleles: []Allele{0, SourceEOV}},
	}
	enc, err := Encode(samples, 2, 2, false)
	require.NoError(t, err)
	require.NotEqual(t, MethodM1, enc.Method)
	require.Equal(t, uint64(len(samples)), sumRunLengths(decodeAny(t, enc)))
}

func TestM2NAllelicRoundTrip(t *testing.T) {
	samples := []Sample{
		{Alleles: []Allele{0, 0}},
		{Alleles: []Allele{0, 1}},
		{Alleles: []Allele{1, 2}},
		{Alleles: []Allele{2, 2}},
		{Alleles: []Allele{2, 2}},
	}
	enc, err := Encode(samples, 2, 3, false)
	require.NoError(t, err)
	require.True(t, enc.Method == MethodM2 || enc.Method == MethodM3)
	require.Equal(t, uint64(len(samples)), sumRunLengths(decodeAny(t, enc)))
}

func TestHighCardinalityRoundTrip(t *testing.T) {
	// Many distinct alleles with no repeated runs: every sample is its own
	// run. M2 (64 runs of 16-bit words) and the BCF fallback (64 two-byte
	// words) both cost 128 bytes, and Encode keeps M2 on a tie.
	nAllele := 40
	samples := make([]Sample, 64)
	for i := range samples {
		samples[i] = Sample{Alleles: []Allele{Allele(i % nAllele), Allele((i + 1) % nAllele)}}
	}
	enc, err := Encode(samples, 2, nAllele, false)
	require.NoError(t, err)
	require.Equal(t, uint64(len(samples)), sumRunLengths(decodeAny(t, enc)))
}

func TestM4Triploid(t *testing.T) {
	samples := []Sample{
		{Alleles: []Allele{0, 0, 1}, Phase: true},
		{Alleles: []Allele{0, 0, 1}, Phase: true},
		{Alleles: []Allele{1, 1, 0}, Phase: false},
	}
	enc, err := Encode(samples, 3, 2, true)
	require.NoError(t, err)
	require.Equal(t, MethodM4, enc.Method)

	runs, err := DecodeM4(enc.Bytes, enc.Word, enc.Shift, 3, enc.GlobalPhase)
	require.NoError(t, err)
	require.Equal(t, uint64(len(samples)), sumRunLengths(runs))

	var got []Sample
	for _, r := range runs {
		for i := uint64(0); i < r.Length; i++ {
			got = append(got, Sample{Alleles: r.NAllele, Phase: r.Phase})
		}
	}
	require.Equal(t, samples, got)
}

func decodeAny(t *testing.T, enc Encoded) []Run {
	t.Helper()
	switch enc.Method {
	case MethodM1:
		runs, err := DecodeM1(enc.Bytes, enc.Word, enc.Shift, enc.MixedPhase, enc.GlobalPhase)
		require.NoError(t, err)
		return runs
	case MethodM2:
		runs, err := DecodeM2(enc.Bytes, enc.Word, enc.Shift, enc.MixedPhase, enc.GlobalPhase)
		require.NoError(t, err)
		return runs
	case MethodM3:
		runs, err := DecodeM3(enc.Bytes, enc.Word, enc.Shift, enc.MixedPhase, enc.GlobalPhase)
		require.NoError(t, err)
		return runs
	default:
		t.Fatalf("decodeAny: unexpected method %v", enc.Method)
		return nil
	}
}

func TestM1PackIsSelfInverse(t *testing.T) {
	for v := int32(0); v < 4; v++ {
		require.Equal(t, v, m1Unpack(m1Pack(v)))
	}
}
