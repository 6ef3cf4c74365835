package block

import (
	"fmt"

	"github.com/tachyon-archive/tachyon/iobuf"
)

// Header is the variant-block header (§3 "Variant-block header"): a random
// block hash, the contig and position span, and the offset to the footer.
type Header struct {
	BlockHash uint64
	ContigID  uint32
	MinPos    int64
	MaxPos    int64
	NVariants int32
	NSamples  int32

	HasGT         bool
	HasGTPermuted bool
	AnyEncrypted  bool

	// OffsetToFooter is the byte distance from the end of the header to
	// the start of the footer preamble (§3, §4.7 step 4).
	OffsetToFooter uint64
}

const (
	flagHasGT = 1 << iota
	flagHasGTPermuted
	flagAnyEncrypted
)

func (h Header) flags() byte {
	var f byte
	if h.HasGT {
		f |= flagHasGT
	}
	if h.HasGTPermuted {
		f |= flagHasGTPermuted
	}
	if h.AnyEncrypted {
		f |= flagAnyEncrypted
	}
	return f
}

// WriteTo serializes the header.
func (h Header) WriteTo(w *iobuf.Writer) {
	w.WriteUint64(h.BlockHash)
	w.WriteUint32(h.ContigID)
	w.WriteInt64(h.MinPos)
	w.WriteInt64(h.MaxPos)
	w.WriteInt32(h.NVariants)
	w.WriteInt32(h.NSamples)
	w.WriteByte(h.flags())
	w.WriteUint64(h.OffsetToFooter)
}

// HeaderByteSize is the fixed on-wire size of a serialized Header, used by
// the reader to know how far to seek before applying OffsetToFooter.
const HeaderByteSize = 8 + 4 + 8 + 8 + 4 + 4 + 1 + 8

// ReadHeader deserializes a Header.
func ReadHeader(r *iobuf.Reader) (Header, error) {
	var h Header
	var err error
	if h.BlockHash, err = r.ReadUint64(); err != nil {
		return h, fmt.Errorf("block: read header hash: %w", err)
	}
	if h.ContigID, err = r.ReadUint32(); err != nil {
		return h, fmt.Errorf("block: read header contig: %w", err)
	}
	if h.MinPos, err = r.ReadInt64(); err != nil {
		return h, fmt.Errorf("block: read header min_pos: %w", err)
	}
	if h.MaxPos, err = r.ReadInt64(); err != nil {
		return h, fmt.Errorf("block: read header max_pos: %w", err)
	}
	if h.NVariants, err = r.ReadInt32(); err != nil {
		return h, fmt.Errorf("block: read header n_variants: %w", err)
	}
	if h.NSamples, err = r.ReadInt32(); err != nil {
		return h, fmt.Errorf("block: read header n_samples: %w", err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return h, fmt.Errorf("block: read header flags: %w", err)
	}
	h.HasGT = flags&flagHasGT != 0
	h.HasGTPermuted = flags&flagHasGTPermuted != 0
	h.AnyEncrypted = flags&flagAnyEncrypted != 0
	if h.OffsetToFooter, err = r.ReadUint64(); err != nil {
		return h, fmt.Errorf("block: read header footer offset: %w", err)
	}
	return h, nil
}
