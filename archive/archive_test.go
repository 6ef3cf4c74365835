package archive

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/schema"
)

func diploidRecord(contig uint32, pos int64, ref string, alts []string, alleles []int32) *block.Record {
	nSamples := len(alleles) / 2
	phased := make([]bool, nSamples)
	for i := range phased {
		phased[i] = true
	}
	return &block.Record{
		ContigID: contig,
		Position: pos,
		Name:     "rs0",
		Ref:      ref,
		Alts:     alts,
		HasQual:  true,
		Qual:     30.0,
		GT:       &block.Genotype{Ploidy: 2, Phased: phased, Alleles: alleles},
	}
}

func buildArchive(t *testing.T) (data []byte, header *schema.Header) {
	t.Helper()
	header = schema.New()
	contigID, err := header.AddContig("chr1", 1000)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	bw, err := aw.OpenBlock(contigID)
	require.NoError(t, err)
	require.NoError(t, bw.Append(diploidRecord(contigID, 10, "A", []string{"T"}, []int32{0, 0, 0, 1})))
	require.NoError(t, bw.Append(diploidRecord(contigID, 20, "G", []string{"C"}, []int32{1, 1, 0, 0})))
	require.NoError(t, aw.FinalizeBlock(1000))

	bw, err = aw.OpenBlock(contigID)
	require.NoError(t, err)
	require.NoError(t, bw.Append(diploidRecord(contigID, 500, "A", []string{"T"}, []int32{0, 1, 1, 1})))
	require.NoError(t, aw.FinalizeBlock(1000))

	require.NoError(t, aw.Close())
	return buf.Bytes(), header
}

// TestWriterReaderRoundTrip checks an archive written with two blocks opens
// back up with the right block count, variant count and per-block records.
func TestWriterReaderRoundTrip(t *testing.T) {
	data, _ := buildArchive(t)

	ar, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, ar.Version)
	require.Equal(t, uint64(2), ar.Footer.NBlocks)
	require.Equal(t, uint64(3), ar.Footer.NVariants)
	require.Equal(t, 2, ar.NBlocks())
	require.Equal(t, 1, ar.Header.NContigs())

	rd0, err := ar.ReadBlock(0)
	require.NoError(t, err)
	require.Equal(t, 2, rd0.NVariants())
	recs0, err := rd0.Records()
	require.NoError(t, err)
	require.Equal(t, int64(10), recs0[0].Position)
	require.Equal(t, int64(20), recs0[1].Position)

	rd1, err := ar.ReadBlock(1)
	require.NoError(t, err)
	require.Equal(t, 1, rd1.NVariants())
	recs1, err := rd1.Records()
	require.NoError(t, err)
	require.Equal(t, int64(500), recs1[0].Position)
}

// TestReadBlocksConcurrent checks ReadBlocks decodes every requested block
// and preserves the requested order in its result slice.
func TestReadBlocksConcurrent(t *testing.T) {
	data, _ := buildArchive(t)
	ar, err := Open(data)
	require.NoError(t, err)

	got, err := ar.ReadBlocks(context.Background(), []int{1, 0})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].NVariants())
	require.Equal(t, 2, got[1].NVariants())
}

// TestWriterIndexFindOverlap checks the writer's accumulated index answers
// overlap queries across both finalized blocks (P9).
func TestWriterIndexFindOverlap(t *testing.T) {
	header := schema.New()
	contigID, err := header.AddContig("chr1", 1000)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	bw, err := aw.OpenBlock(contigID)
	require.NoError(t, err)
	require.NoError(t, bw.Append(diploidRecord(contigID, 10, "A", []string{"T"}, []int32{0, 0, 0, 1})))
	require.NoError(t, bw.Append(diploidRecord(contigID, 100, "G", []string{"C"}, []int32{1, 1, 0, 0})))
	require.NoError(t, aw.FinalizeBlock(1000))

	bw, err = aw.OpenBlock(contigID)
	require.NoError(t, err)
	require.NoError(t, bw.Append(diploidRecord(contigID, 300, "A", []string{"T"}, []int32{0, 1, 1, 1})))
	require.NoError(t, aw.FinalizeBlock(1000))

	require.NoError(t, aw.Close())

	require.ElementsMatch(t, []uint32{0}, aw.Index().FindOverlap(contigID, 5, 15))
	// A query far from every block's span and outside any bin either block
	// was placed in (quad-tree over-approximation is bin-shaped, not
	// point-shaped, so a query merely beyond a block's exact span isn't
	// guaranteed empty — see index/index_test.go's own note on this).
	require.Empty(t, aw.Index().FindOverlap(contigID, 900, 950))
}

// TestOpenRejectsBadMagic checks a non-archive byte slice is rejected.
func TestOpenRejectsBadMagic(t *testing.T) {
	_, err := Open([]byte("not a tachyon archive at all"))
	require.Error(t, err)
}

// TestFinalizeBlockWithoutOpenFails checks calling FinalizeBlock on a fresh
// writer (no OpenBlock before it) errors instead of writing an empty block.
func TestFinalizeBlockWithoutOpenFails(t *testing.T) {
	header := schema.New()
	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)
	require.Error(t, aw.FinalizeBlock(100))
}

// TestOpenBlockWhileOpenFails checks the writer enforces at most one open
// block at a time (§4.10).
func TestOpenBlockWhileOpenFails(t *testing.T) {
	header := schema.New()
	contigID, err := header.AddContig("chr1", 1000)
	require.NoError(t, err)

	var buf bytes.Buffer
	aw, err := NewWriter(&buf, header)
	require.NoError(t, err)

	_, err = aw.OpenBlock(contigID)
	require.NoError(t, err)
	_, err = aw.OpenBlock(contigID)
	require.Error(t, err)
}
