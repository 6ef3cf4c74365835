package compress

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tachyon-archive/tachyon/container"
)

func TestTransposeIsInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 32*17) // n = 8*17 words, divisible by 8
	rng.Read(data)

	transposed, err := Transpose(data)
	require.NoError(t, err)
	require.Len(t, transposed, len(data))

	back, err := Untranspose(transposed)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, back))
}

func TestTransposeRejectsUnaligned(t *testing.T) {
	_, err := Transpose(make([]byte, 31))
	require.ErrorIs(t, err, ErrUnalignedBuffer)
}

func TestTransposeBitPlacement(t *testing.T) {
	// 8 words (32 bytes), word 0 = 1 (bit 0 set), rest zero.
	data := make([]byte, 32)
	binary.LittleEndian.PutUint32(data[0:4], 1)

	out, err := Transpose(data)
	require.NoError(t, err)
	bucketBytes := 1 // n=8, n/8=1
	// bit 0 of word 0 lands in bucket 31, byte 0, bit 0.
	require.Equal(t, byte(1), out[31*bucketBytes])
	for b := 0; b < 31; b++ {
		require.Equal(t, byte(0), out[b*bucketBytes])
	}
}

func TestApplyRoundTripsUniformData(t *testing.T) {
	c := container.New(1)
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Add(7))
	}
	require.NoError(t, c.UpdateContainer(true, false))
	require.NoError(t, Apply(c))

	decoded, err := Decode(c.Header.Encoder, c.Data)
	require.NoError(t, err)
	require.Equal(t, c.DataUncompressed, decoded)
}

func TestApplyNotSealed(t *testing.T) {
	c := container.New(1)
	require.NoError(t, c.Add(1))
	require.ErrorIs(t, Apply(c), ErrNotSealed)
}

func TestDecodeUnknownEncoder(t *testing.T) {
	_, err := Decode(container.Encoder(99), nil)
	require.ErrorIs(t, err, ErrUnknownEncoder)
}
