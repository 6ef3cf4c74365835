// Package compress implements the three C3 stream codecs (none, zstd,
// zpaq) dispatched by a container's Encoder header field, plus the PPA
// bit-transpose prefilter.
package compress

import (
	"github.com/klauspost/compress/zstd"

	"github.com/tachyon-archive/tachyon/container"
)

// Default zstd levels, §4.3: "level (default 20 for general streams, 3 for
// float/double streams)".
const (
	DefaultLevel = 20
	FloatLevel   = 3

	// ratioThreshold is the minimum uncompressed/compressed size ratio
	// below which a stream falls back to EncoderNone (§4.3).
	ratioThreshold = 1.1
)

func levelFor(t container.Type) int {
	switch t {
	case container.TypeF32, container.TypeF64:
		return FloatLevel
	default:
		return DefaultLevel
	}
}

func compressZSTD(data []byte, level int, opts ...zstd.EOption) ([]byte, error) {
	options := append([]zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))}, opts...)
	enc, err := zstd.NewWriter(nil, options...)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompressZSTD(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// compressBuffer runs zstd at level and applies the 1.1 ratio fallback,
// returning the bytes to store and the encoder tag to stamp.
func compressBuffer(data []byte, level int) ([]byte, container.Encoder) {
	if len(data) == 0 {
		return data, container.EncoderNone
	}
	compressed, err := compressZSTD(data, level)
	if err != nil {
		return data, container.EncoderNone
	}
	if len(compressed) >= len(data) || float64(len(data))/float64(len(compressed)) < ratioThreshold {
		return data, container.EncoderNone
	}
	return compressed, container.EncoderZSTD
}

// Apply compresses a sealed container's uncompressed data (and stride, if
// present) buffers into Data/Stride, per §4.3.
func Apply(c *container.Container) error {
	if !c.Sealed() {
		return ErrNotSealed
	}

	data, enc := compressBuffer(c.DataUncompressed, levelFor(c.Header.Type))
	c.Data = data
	c.Header.Encoder = enc

	if c.StrideUncompressed != nil {
		stride, senc := compressBuffer(c.StrideUncompressed, DefaultLevel)
		c.Stride = stride
		c.StrideHeader.Encoder = senc
	}
	return nil
}

// ApplyZPAQ forces the opt-in high-compression path reserved for
// high-entropy textual fields (§4.3). No maintained Go zpaq implementation
// is available in the dependency set this module draws from, so the zpaq
// tag is backed by zstd at its best-compression level with a 128 MiB window —
// same external contract (encoder tag round-trips as "zpaq"), different
// engine underneath. See DESIGN.md.
func ApplyZPAQ(c *container.Container) error {
	if !c.Sealed() {
		return ErrNotSealed
	}
	compressed, err := compressZSTD(c.DataUncompressed, 0,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithWindowSize(1<<27),
	)
	if err != nil {
		return err
	}
	if len(compressed) == 0 || len(compressed) >= len(c.DataUncompressed) ||
		float64(len(c.DataUncompressed))/float64(len(compressed)) < ratioThreshold {
		c.Data = c.DataUncompressed
		c.Header.Encoder = container.EncoderNone
		return nil
	}
	c.Data = compressed
	c.Header.Encoder = container.EncoderZPAQ
	return nil
}

// CompressRaw zstd-compresses data unconditionally (no ratio fallback, no
// container involved), used by the block footer, which the wire format
// always stores zstd-compressed with no encoder tag of its own (§4.8 step 2,
// §6 "footer preamble"). The archive footer is written uncompressed.
func CompressRaw(data []byte, level int) ([]byte, error) {
	return compressZSTD(data, level)
}

// DecompressRaw inverts CompressRaw.
func DecompressRaw(data []byte) ([]byte, error) {
	return decompressZSTD(data)
}

// Decode inverts Apply/ApplyZPAQ for a single compressed buffer, given the
// encoder tag stored in the stream header.
func Decode(encoder container.Encoder, compressed []byte) ([]byte, error) {
	switch encoder {
	case container.EncoderNone:
		return compressed, nil
	case container.EncoderZSTD, container.EncoderZPAQ:
		return decompressZSTD(compressed)
	default:
		return nil, ErrUnknownEncoder
	}
}
