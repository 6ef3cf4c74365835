package container

import (
	"crypto/md5"
	"math"

	"github.com/tachyon-archive/tachyon/iobuf"
)

// Container is a single typed data stream plus its optional stride stream
// (§3 "Data container"). Values are accumulated with the Add* methods, then
// sealed once with UpdateContainer, which performs uniformity detection,
// integer narrowing, stride narrowing and checksumming in that order.
type Container struct {
	Header       StreamHeader
	StrideHeader StreamHeader

	// Identifier is the container's 64-bit unique id, used as the keychain
	// lookup key when the container is encrypted (C4).
	Identifier uint64

	NEntries   int
	NAdditions int
	NStrides   int

	ints     []int32
	floats32 []float32
	floats64 []float64
	raw      []byte
	typeSet  bool

	strides []int32

	DataUncompressed   []byte
	StrideUncompressed []byte

	// Data and Stride hold the compressed (and possibly encrypted) bytes,
	// populated by package compress (and, for encrypted containers,
	// package crypt) after UpdateContainer has sealed the uncompressed
	// buffers. Empty until a codec has run.
	Data   []byte
	Stride []byte

	DataMD5   [16]byte
	StrideMD5 [16]byte

	sealed bool
}

// New returns an empty container identified by id.
func New(id uint64) *Container {
	return &Container{Identifier: id}
}

// Sealed reports whether UpdateContainer has already run.
func (c *Container) Sealed() bool { return c.sealed }

// UncompressedSize returns the byte length of the sealed data and stride
// buffers before compression. The block writer does not call it; it derives
// stream offsets from the serialized stream records.
func (c *Container) UncompressedSize() int {
	return len(c.DataUncompressed) + len(c.StrideUncompressed)
}

// CompressedSize returns the byte length of the data and stride buffers
// after compression (and encryption, if applied).
func (c *Container) CompressedSize() int {
	return len(c.Data) + len(c.Stride)
}

func (c *Container) setType(t Type, signed bool) error {
	if !c.typeSet {
		c.Header.Type = t
		c.Header.Signed = signed
		c.typeSet = true
		return nil
	}
	if c.Header.Type != t {
		return ErrTypeMismatch
	}
	return nil
}

// Add widens v to i32 and appends it, per §4.2 "add(v: integer) widens to
// i32 during construction".
func (c *Container) Add(v int32) error {
	if c.sealed {
		return ErrSealed
	}
	if err := c.setType(TypeI32, true); err != nil {
		return err
	}
	c.ints = append(c.ints, v)
	c.NEntries++
	c.NAdditions++
	return nil
}

// AddFloat32 appends a native float32 value.
func (c *Container) AddFloat32(v float32) error {
	if c.sealed {
		return ErrSealed
	}
	if err := c.setType(TypeF32, false); err != nil {
		return err
	}
	c.floats32 = append(c.floats32, v)
	c.NEntries++
	c.NAdditions++
	return nil
}

// AddFloat64 appends a native float64 value.
func (c *Container) AddFloat64(v float64) error {
	if c.sealed {
		return ErrSealed
	}
	if err := c.setType(TypeF64, false); err != nil {
		return err
	}
	c.floats64 = append(c.floats64, v)
	c.NEntries++
	c.NAdditions++
	return nil
}

// AddBytes appends raw bytes verbatim (char/struct family streams — names,
// alleles) and increments the literal counter, per §4.2.
func (c *Container) AddBytes(b []byte) error {
	if c.sealed {
		return ErrSealed
	}
	if err := c.setType(TypeChar, false); err != nil {
		return err
	}
	c.raw = append(c.raw, b...)
	c.NAdditions++
	return nil
}

// AddStride records this record's element count in the stride stream.
func (c *Container) AddStride(n int32) error {
	if c.sealed {
		return ErrSealed
	}
	c.strides = append(c.strides, n)
	c.NStrides++
	return nil
}

// AddLiteral appends bytes without touching n_entries, used by record-layout
// encoders (e.g. genotype RLE words) that pack their own framing directly
// into the data buffer. Stamps Type TypeStruct so UpdateContainer serializes
// the raw buffer verbatim instead of an empty i32 stream (Type's zero value
// is TypeI8, which IsSignedInt reports true).
func (c *Container) AddLiteral(b []byte) error {
	if c.sealed {
		return ErrSealed
	}
	if err := c.setType(TypeStruct, false); err != nil {
		return err
	}
	c.raw = append(c.raw, b...)
	return nil
}

// UpdateContainer seals the container: uniformity test, optional integer
// narrowing, optional stride narrowing, then MD5 checksumming (§4.2).
func (c *Container) UpdateContainer(reformatData, reformatStride bool) error {
	if c.sealed {
		return ErrSealed
	}

	switch {
	case c.Header.Type.IsSignedInt():
		c.DataUncompressed = serializeI32(c.ints)
	case c.Header.Type == TypeF32:
		c.DataUncompressed = serializeF32(c.floats32)
	case c.Header.Type == TypeF64:
		c.DataUncompressed = serializeF64(c.floats64)
	default:
		c.DataUncompressed = c.raw
	}

	c.checkUniformity()

	if reformatData && c.Header.Type == TypeI32 && c.Header.Signed {
		if err := c.narrowIntegers(); err != nil {
			return err
		}
	}

	if len(c.strides) > 0 {
		c.StrideUncompressed = serializeI32(c.strides)
		if reformatStride {
			c.narrowStrides()
		}
	}

	c.DataMD5 = md5.Sum(c.DataUncompressed)
	if c.StrideUncompressed != nil {
		c.StrideMD5 = md5.Sum(c.StrideUncompressed)
	}

	c.sealed = true
	return nil
}

// checkUniformity implements step 1 of UpdateContainer: if every record is
// byte-identical under the declared stride, set Header.Uniform and truncate
// the uncompressed buffer to a single record.
func (c *Container) checkUniformity() {
	if c.NEntries == 0 {
		return
	}
	if c.NEntries == 1 {
		c.Header.Uniform = true
		return
	}

	switch {
	case c.Header.Type.IsSignedInt():
		if len(c.ints) != c.NEntries {
			return
		}
		v0 := c.ints[0]
		for _, v := range c.ints[1:] {
			if v != v0 {
				return
			}
		}
		c.Header.Uniform = true
		c.ints = c.ints[:1]
		c.DataUncompressed = serializeI32(c.ints)
	case c.Header.Type == TypeF32:
		if len(c.floats32) != c.NEntries {
			return
		}
		v0 := c.floats32[0]
		for _, v := range c.floats32[1:] {
			if v != v0 {
				return
			}
		}
		c.Header.Uniform = true
		c.floats32 = c.floats32[:1]
		c.DataUncompressed = serializeF32(c.floats32)
	case c.Header.Type == TypeF64:
		if len(c.floats64) != c.NEntries {
			return
		}
		v0 := c.floats64[0]
		for _, v := range c.floats64[1:] {
			if v != v0 {
				return
			}
		}
		c.Header.Uniform = true
		c.floats64 = c.floats64[:1]
		c.DataUncompressed = serializeF64(c.floats64)
	default:
		// Variable-length byte streams (alleles, names) are only tested for
		// uniformity when every record occupies the declared fixed stride;
		// mixed-stride byte streams are never uniform.
		if c.Header.MixedStride || c.Header.Stride <= 0 {
			return
		}
		width := int(c.Header.Stride)
		if len(c.raw) != c.NEntries*width {
			return
		}
		first := append([]byte(nil), c.raw[:width]...)
		for i := 1; i < c.NEntries; i++ {
			chunk := c.raw[i*width : (i+1)*width]
			if !bytesEqual(chunk, first) {
				return
			}
		}
		c.Header.Uniform = true
		c.raw = first
		c.DataUncompressed = c.raw
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// narrowIntegers implements step 2 of UpdateContainer: picks the narrowest
// of {i8,i16,i32,i64} that represents every value including the two
// reserved sentinels, per the strict reading of the Open Question in §9
// (narrowing that would alias a sentinel with a legal value is rejected,
// not warned-and-proceeded).
func (c *Container) narrowIntegers() error {
	values := c.ints
	width, err := narrowestWidth(values)
	if err != nil {
		return err
	}
	c.Header.Type = width
	w := iobuf.NewWriter(len(values) * width.byteWidth())
	for _, v := range values {
		writeNarrowed(w, width, v)
	}
	c.DataUncompressed = w.Bytes()
	return nil
}

// narrowStrides implements step 3 of UpdateContainer for the stride stream:
// a uniform stride collapses into the header's fixed Stride field, else the
// stride stream itself is narrowed to the smallest unsigned width.
func (c *Container) narrowStrides() {
	if len(c.strides) == 0 {
		return
	}
	allEqual := true
	v0 := c.strides[0]
	for _, v := range c.strides[1:] {
		if v != v0 {
			allEqual = false
			break
		}
	}
	if allEqual {
		c.StrideHeader.MixedStride = false
		c.StrideHeader.Stride = v0
		c.StrideUncompressed = nil
		c.strides = nil
		return
	}

	c.StrideHeader.MixedStride = true
	width := narrowestUnsignedWidth(c.strides)
	c.StrideHeader.Type = width
	w := iobuf.NewWriter(len(c.strides) * width.byteWidth())
	for _, v := range c.strides {
		writeUnsigned(w, width, uint32(v))
	}
	c.StrideUncompressed = w.Bytes()
}

// narrowestWidth returns the smallest signed integer Type representing
// every value in values, where SentinelMissingI32/SentinelEOVI32 always map
// to the candidate width's two reserved low codes, and every other value
// must avoid those two codes entirely.
func narrowestWidth(values []int32) (Type, error) {
	for _, w := range [...]Type{TypeI8, TypeI16, TypeI32, TypeI64} {
		lo, hi := intRange(w)
		ok := true
		for _, v := range values {
			if isSentinelI32(v) {
				continue
			}
			vv := int64(v)
			if vv < lo+2 || vv > hi {
				ok = false
				break
			}
		}
		if ok {
			return w, nil
		}
	}
	return TypeUnknown, ErrOverflow
}

func writeNarrowed(w *iobuf.Writer, t Type, v int32) {
	missing, eov := narrowSentinels(t)
	var out int64
	switch {
	case v == SentinelMissingI32:
		out = missing
	case v == SentinelEOVI32:
		out = eov
	default:
		out = int64(v)
	}
	switch t {
	case TypeI8:
		w.WriteByte(byte(int8(out)))
	case TypeI16:
		w.WriteUint16(uint16(int16(out)))
	case TypeI32:
		w.WriteInt32(int32(out))
	case TypeI64:
		w.WriteInt64(out)
	}
}

// Widen reconstructs i32-space values (sentinels restored to
// SentinelMissingI32/SentinelEOVI32) from a buffer narrowed to type t. It is
// the inverse of narrowIntegers, used by container, block and archive
// readers (P6).
func Widen(t Type, buf []byte) ([]int32, error) {
	width := t.byteWidth()
	if width == 0 || !t.IsSignedInt() {
		return nil, ErrTypeMismatch
	}
	n := len(buf) / width
	out := make([]int32, 0, n)
	missing, eov := narrowSentinels(t)
	r := iobuf.NewReader(buf)
	for i := 0; i < n; i++ {
		var raw int64
		switch t {
		case TypeI8:
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			raw = int64(int8(b))
		case TypeI16:
			v, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			raw = int64(int16(v))
		case TypeI32:
			v, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			raw = int64(v)
		case TypeI64:
			v, err := r.ReadInt64()
			if err != nil {
				return nil, err
			}
			raw = v
		}
		switch raw {
		case missing:
			out = append(out, SentinelMissingI32)
		case eov:
			out = append(out, SentinelEOVI32)
		default:
			out = append(out, int32(raw))
		}
	}
	return out, nil
}

func narrowestUnsignedWidth(values []int32) Type {
	var max uint32
	for _, v := range values {
		if uint32(v) > max {
			max = uint32(v)
		}
	}
	switch {
	case max <= 0xFF:
		return TypeU8
	case max <= 0xFFFF:
		return TypeU16
	default:
		return TypeU32
	}
}

func writeUnsigned(w *iobuf.Writer, t Type, v uint32) {
	switch t {
	case TypeU8:
		w.WriteByte(byte(v))
	case TypeU16:
		w.WriteUint16(uint16(v))
	case TypeU32:
		w.WriteUint32(v)
	case TypeU64:
		w.WriteUint64(uint64(v))
	}
}

func serializeI32(values []int32) []byte {
	w := iobuf.NewWriter(len(values) * 4)
	for _, v := range values {
		w.WriteInt32(v)
	}
	return w.Bytes()
}

func serializeF32(values []float32) []byte {
	w := iobuf.NewWriter(len(values) * 4)
	for _, v := range values {
		w.WriteUint32(math.Float32bits(v))
	}
	return w.Bytes()
}

func serializeF64(values []float64) []byte {
	w := iobuf.NewWriter(len(values) * 8)
	for _, v := range values {
		w.WriteUint64(math.Float64bits(v))
	}
	return w.Bytes()
}
