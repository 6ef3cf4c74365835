package iobuf

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteByte(0xAB)
	w.WriteUint16(0x1234)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0102030405060708)
	w.WriteInt32(-1)
	w.WriteInt64(-2)
	w.WriteString("tachyon")
	w.WriteFramed([]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	require.Equal(t, int32(-1), i32)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	require.Equal(t, int64(-2), i64)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "tachyon", s)

	framed, err := r.ReadFramed()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, framed)

	require.Zero(t, r.Len())
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.ReadUint32()
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestReadChecked(t *testing.T) {
	payload := []byte("sample-genotype-stream")
	sum := md5.Sum(payload)

	w := NewWriter(0)
	w.WriteBytes(payload)
	r := NewReader(w.Bytes())

	got, err := r.ReadChecked(len(payload), sum)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadCheckedMismatch(t *testing.T) {
	payload := []byte("sample-genotype-stream")
	var badSum [md5.Size]byte

	r := NewReader(payload)
	_, err := r.ReadChecked(len(payload), badSum)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReaderSeek(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})
	require.NoError(t, r.Seek(3))
	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(4), b)

	err = r.Seek(100)
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestWriterMD5(t *testing.T) {
	w := NewWriter(0)
	w.WriteBytes([]byte("abc"))
	require.Equal(t, md5.Sum([]byte("abc")), w.MD5())
}
