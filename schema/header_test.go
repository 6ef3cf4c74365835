package schema

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tachyon-archive/tachyon/container"
	"github.com/tachyon-archive/tachyon/iobuf"
)

func TestAddContigMintsOnFirstSeenAndDedupes(t *testing.T) {
	h := New()
	id1, err := h.AddContig("chr1", 248956422)
	require.NoError(t, err)
	require.Equal(t, uint32(0), id1)

	id2, err := h.AddContig("chr2", 242193529)
	require.NoError(t, err)
	require.Equal(t, uint32(1), id2)

	id1again, err := h.AddContig("chr1", 248956422)
	require.NoError(t, err)
	require.Equal(t, id1, id1again)
	require.Equal(t, 2, h.NContigs())
}

func TestSealRejectsNewNames(t *testing.T) {
	h := New()
	_, err := h.AddInfo("DP", container.TypeI32, "read depth")
	require.NoError(t, err)
	h.Seal()

	// existing names still resolve after seal
	id, err := h.AddInfo("DP", container.TypeI32, "read depth")
	require.NoError(t, err)
	require.Equal(t, uint32(0), id)

	_, err = h.AddInfo("AF", container.TypeF32, "allele frequency")
	require.ErrorIs(t, err, ErrSealed)
}

func TestWriteToReadFromRoundTrip(t *testing.T) {
	h := New()
	_, _ = h.AddContig("chr1", 1000)
	_, _ = h.AddContig("chr2", 2000)
	_, _ = h.AddInfo("DP", container.TypeI32, "read depth")
	_, _ = h.AddFormat("GT", container.TypeI8, "genotype")
	_, _ = h.AddFilter("PASS", "all filters passed")
	h.Seal()
	h.IncrementContigBlocks(0)
	h.IncrementContigBlocks(0)

	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)

	r := iobuf.NewReader(buf.Bytes())
	got, err := ReadFrom(r)
	require.NoError(t, err)
	require.True(t, got.Sealed())
	require.Equal(t, 2, got.NContigs())
	require.Equal(t, 1, got.NInfo())
	require.Equal(t, 1, got.NFormat())
	require.Equal(t, 1, got.NFilter())

	c0, ok := got.Contig(0)
	require.True(t, ok)
	require.Equal(t, "chr1", c0.Name)
	require.Equal(t, int64(1000), c0.Length)
	require.Equal(t, uint32(2), c0.NBlocks)

	info0, ok := got.Info(0)
	require.True(t, ok)
	require.Equal(t, container.TypeI32, info0.WireType)
}
