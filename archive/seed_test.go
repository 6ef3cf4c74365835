package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tachyon-archive/tachyon/schema"
	"github.com/tachyon-archive/tachyon/testutil"
)

// TestSeedScenario1 exercises spec.md §8 seed scenario 1 end-to-end through
// a full archive round trip (P10): one biallelic diploid site, 4 samples,
// REF=A ALT=T, genotypes [0|0, 0|1, 1|1, ./.].
func TestSeedScenario1(t *testing.T) {
	header := schema.New()
	contigID, err := header.AddContig("chr1", 1000)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	bw, err := aw.OpenBlock(contigID)
	require.NoError(t, err)
	for _, rec := range testutil.Scenario1Records(contigID) {
		require.NoError(t, bw.Append(rec))
	}
	require.NoError(t, aw.FinalizeBlock(1000))
	require.NoError(t, aw.Close())

	ar, err := Open(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 1, ar.NBlocks())

	rd, err := ar.ReadBlock(0)
	require.NoError(t, err)
	got, err := rd.Records()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].Ref)
	require.Equal(t, []string{"T"}, got[0].Alts)
	require.Equal(t, []int32{0, 0, 0, 1, 1, 1, -1, -1}, got[0].GT.Alleles)
}

// TestSeedScenario4Subset exercises a scaled-down form of seed scenario 4
// (permutation over a multi-sample biallelic-diploid block): checks the
// whole block round-trips and that FindOverlap locates exactly this block
// across a wide query range, as the full-size scenario specifies.
func TestSeedScenario4Subset(t *testing.T) {
	const nSites, nSamples = 50, 200

	header := schema.New()
	contigID, err := header.AddContig("chr1", 1_000_000_000)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	bw, err := aw.OpenBlock(contigID)
	require.NoError(t, err)
	for _, rec := range testutil.Scenario4Records(contigID, nSites, nSamples) {
		require.NoError(t, bw.Append(rec))
	}
	require.NoError(t, aw.FinalizeBlock(1_000_000_000))
	require.NoError(t, aw.Close())

	require.ElementsMatch(t, []uint32{0}, aw.Index().FindOverlap(contigID, 0, 1_000_000_000))

	ar, err := Open(buf.Bytes())
	require.NoError(t, err)
	rd, err := ar.ReadBlock(0)
	require.NoError(t, err)
	require.Equal(t, nSites, rd.NVariants())
}

// TestSeedScenario6 exercises spec.md §8 seed scenario 6 (range query
// across block boundaries) through the writer's own index rather than a
// hand-built one, confirming the fixture and the archive-level index
// wiring agree with index_test.go's direct-package version.
func TestSeedScenario6(t *testing.T) {
	header := schema.New()
	contigID, err := header.AddContig("chrY", 1024)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	for _, b := range testutil.Scenario6Blocks() {
		bw, err := aw.OpenBlock(contigID)
		require.NoError(t, err)
		// Two records pin the block's header.MinPos/MaxPos to the
		// scenario's declared span; the block writer derives the span
		// from actual record positions, it isn't a separate field.
		require.NoError(t, bw.Append(diploidRecord(contigID, b.MinPos, "A", []string{"T"}, []int32{0, 0})))
		require.NoError(t, bw.Append(diploidRecord(contigID, b.MaxPos, "A", []string{"T"}, []int32{0, 0})))
		require.NoError(t, aw.FinalizeBlock(b.ContigLength))
	}
	require.NoError(t, aw.Close())

	require.ElementsMatch(t, []uint32{0, 1}, aw.Index().FindOverlap(contigID, 95, 105))
	// The gap between block B's end (200) and block C's start (300) must
	// stay empty: IndexRecord indexes each record's own position, so block
	// C's points sit in deep leaf bins nowhere near this range, rather than
	// the coarse bin its old aggregate [300,400] span would have landed in.
	require.Empty(t, aw.Index().FindOverlap(contigID, 250, 260))
}
