// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package iobuf provides the little-endian primitive encoding used by every
// other tachyon package: fixed-width integers, length-prefixed byte and
// string framing, and MD5 content checksums. Nothing here understands
// containers, blocks or archives; it only understands bytes.
package iobuf

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by Reader methods when fewer bytes remain than
// the read requires.
var ErrShortBuffer = errors.New("iobuf: short buffer")

// Writer accumulates a little-endian encoded byte stream. The zero value is
// ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with cap bytes of pre-allocated capacity.
func NewWriter(cap int) *Writer {
	return &Writer{buf: make([]byte, 0, cap)}
}

// Bytes returns the accumulated bytes. The slice is retained by the Writer;
// callers that keep the result beyond the next write should copy it.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards all accumulated bytes while keeping the backing array.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// WriteBytes appends p verbatim, with no length prefix.
func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteUint16 appends v as a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteUint32 appends v as a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteUint64 appends v as a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// WriteInt32 appends v as a little-endian two's complement int32.
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

// WriteInt64 appends v as a little-endian two's complement int64.
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteFramed appends a uint32 length prefix followed by p.
func (w *Writer) WriteFramed(p []byte) {
	w.WriteUint32(uint32(len(p)))
	w.WriteBytes(p)
}

// WriteString appends s using the same length-prefixed framing as WriteFramed.
func (w *Writer) WriteString(s string) {
	w.WriteFramed([]byte(s))
}

// MD5 returns the MD5 digest of the bytes written so far.
func (w *Writer) MD5() [md5.Size]byte {
	return md5.Sum(w.buf)
}

// Reader consumes a little-endian encoded byte stream produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps p for sequential reads. p is retained, not copied.
func NewReader(p []byte) *Reader {
	return &Reader{buf: p}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Seek repositions the read cursor to an absolute byte offset, used by the
// block and archive readers for footer-first, offset-guided stream access.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: seek to %d, length %d", ErrShortBuffer, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

func (r *Reader) need(n int) error {
	if r.Len() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, r.Len())
	}
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads n raw bytes with no length prefix. The returned slice
// aliases the Reader's backing array.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	p := r.buf[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	p, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	p, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	p, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

// ReadInt32 reads a little-endian two's complement int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads a little-endian two's complement int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFramed reads a uint32 length prefix followed by that many bytes. The
// returned slice aliases the Reader's backing array.
func (r *Reader) ReadFramed() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a length-prefixed string written by Writer.WriteString.
func (r *Reader) ReadString() (string, error) {
	p, err := r.ReadFramed()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadChecked reads n bytes and verifies their MD5 digest against want,
// returning ErrChecksumMismatch on failure. The block and archive readers do
// not call it; they check MD5 digests of decompressed data themselves.
func (r *Reader) ReadChecked(n int, want [md5.Size]byte) ([]byte, error) {
	p, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	got := md5.Sum(p)
	if got != want {
		return nil, fmt.Errorf("%w: got %x, want %x", ErrChecksumMismatch, got, want)
	}
	return p, nil
}

// ErrChecksumMismatch is returned by ReadChecked when the computed digest
// does not match the expected one.
var ErrChecksumMismatch = errors.New("iobuf: checksum mismatch")
