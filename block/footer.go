package block

import (
	"crypto/md5"
	"fmt"

	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/compress"
	"github.com/tachyon-archive/tachyon/iobuf"
)

// footerZstdLevel mirrors compress.DefaultLevel; the footer is a small,
// metadata-only buffer so there's no ratio-fallback decision to make (§4.8
// step 2 always expects a zstd-compressed footer).
const footerZstdLevel = compress.DefaultLevel

// Footer is the variant-block footer (§3 "Variant-block footer"): the
// global-id-to-local-index dictionaries for INFO/FORMAT/FILTER, the
// de-duplicated patterns observed in the block, and the byte offset of
// every stream relative to the block's compressed-data origin.
type Footer struct {
	InfoDict   []uint32 // local index -> global id
	FormatDict []uint32
	FilterDict []uint32

	InfoPatterns   *PatternSet
	FormatPatterns *PatternSet
	FilterPatterns *PatternSet

	// StreamOffsets holds, in fixed order (PPA if present, then the 24
	// base streams, then info[0..n_info), then format[0..n_format)), the
	// byte offset of each stream's on-wire record relative to the start
	// of the block's stream section (immediately after the header).
	StreamOffsets []uint64
}

func newFooter() *Footer {
	return &Footer{
		InfoPatterns:   newPatternSet(),
		FormatPatterns: newPatternSet(),
		FilterPatterns: newPatternSet(),
	}
}

func writeDict(w *iobuf.Writer, dict []uint32) {
	w.WriteUint32(uint32(len(dict)))
	for _, id := range dict {
		w.WriteUint32(id)
	}
}

func readDict(r *iobuf.Reader) ([]uint32, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	dict := make([]uint32, n)
	for i := range dict {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		dict[i] = v
	}
	return dict, nil
}

func writePatternSet(w *iobuf.Writer, ps *PatternSet, nFieldBytes int) {
	all := ps.All()
	w.WriteUint32(uint32(len(all)))
	for _, p := range all {
		w.WriteUint32(uint32(len(p.LocalIDs)))
		for _, id := range p.LocalIDs {
			w.WriteUint32(id)
		}
		bits := make([]byte, nFieldBytes)
		copy(bits, p.Bits)
		w.WriteBytes(bits)
	}
}

func readPatternSet(r *iobuf.Reader, nFieldBytes int) (*PatternSet, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	patterns := make([]Pattern, n)
	for i := range patterns {
		nids, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		ids := make([]uint32, nids)
		for j := range ids {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			ids[j] = v
		}
		bits, err := r.ReadBytes(nFieldBytes)
		if err != nil {
			return nil, err
		}
		patterns[i] = Pattern{LocalIDs: ids, Bits: append([]byte(nil), bits...)}
	}
	return newPatternSetFromPatterns(patterns), nil
}

// marshal serializes the footer's logical contents (no compression).
func (f *Footer) marshal() []byte {
	w := iobuf.NewWriter(256)
	writeDict(w, f.InfoDict)
	writeDict(w, f.FormatDict)
	writeDict(w, f.FilterDict)

	writePatternSet(w, f.InfoPatterns, common.CeilDiv(len(f.InfoDict), 8))
	writePatternSet(w, f.FormatPatterns, common.CeilDiv(len(f.FormatDict), 8))
	writePatternSet(w, f.FilterPatterns, common.CeilDiv(len(f.FilterDict), 8))

	w.WriteUint32(uint32(len(f.StreamOffsets)))
	for _, off := range f.StreamOffsets {
		w.WriteUint64(off)
	}
	return w.Bytes()
}

func unmarshalFooter(data []byte) (*Footer, error) {
	r := iobuf.NewReader(data)
	f := &Footer{}
	var err error
	if f.InfoDict, err = readDict(r); err != nil {
		return nil, fmt.Errorf("block: read footer info dict: %w", err)
	}
	if f.FormatDict, err = readDict(r); err != nil {
		return nil, fmt.Errorf("block: read footer format dict: %w", err)
	}
	if f.FilterDict, err = readDict(r); err != nil {
		return nil, fmt.Errorf("block: read footer filter dict: %w", err)
	}
	if f.InfoPatterns, err = readPatternSet(r, common.CeilDiv(len(f.InfoDict), 8)); err != nil {
		return nil, fmt.Errorf("block: read footer info patterns: %w", err)
	}
	if f.FormatPatterns, err = readPatternSet(r, common.CeilDiv(len(f.FormatDict), 8)); err != nil {
		return nil, fmt.Errorf("block: read footer format patterns: %w", err)
	}
	if f.FilterPatterns, err = readPatternSet(r, common.CeilDiv(len(f.FilterDict), 8)); err != nil {
		return nil, fmt.Errorf("block: read footer filter patterns: %w", err)
	}
	nOffsets, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("block: read footer offset count: %w", err)
	}
	f.StreamOffsets = make([]uint64, nOffsets)
	for i := range f.StreamOffsets {
		if f.StreamOffsets[i], err = r.ReadUint64(); err != nil {
			return nil, fmt.Errorf("block: read footer offset %d: %w", i, err)
		}
	}
	return f, nil
}

// WriteTo serializes the footer through the self-contained preamble format
// of §4.8 step 2: uncompressed length, compressed length, MD5 of the
// uncompressed bytes, then the zstd-compressed bytes themselves.
func (f *Footer) WriteTo(w *iobuf.Writer) error {
	raw := f.marshal()
	sum := md5.Sum(raw)
	compressed, err := compress.CompressRaw(raw, footerZstdLevel)
	if err != nil {
		return fmt.Errorf("block: compress footer: %w", err)
	}
	w.WriteUint32(uint32(len(raw)))
	w.WriteUint32(uint32(len(compressed)))
	w.WriteBytes(sum[:])
	w.WriteBytes(compressed)
	return nil
}

// ReadFooterFrom inverts WriteTo, validating the MD5 of the decompressed
// bytes before returning (§4.8 step 2 "verify MD5").
func ReadFooterFrom(r *iobuf.Reader) (*Footer, error) {
	uLen, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("block: read footer u_len: %w", err)
	}
	cLen, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("block: read footer c_len: %w", err)
	}
	var want [16]byte
	wantSlice, err := r.ReadBytes(16)
	if err != nil {
		return nil, fmt.Errorf("block: read footer md5: %w", err)
	}
	copy(want[:], wantSlice)

	compressed, err := r.ReadBytes(int(cLen))
	if err != nil {
		return nil, fmt.Errorf("block: read footer bytes: %w", err)
	}
	raw, err := compress.DecompressRaw(compressed)
	if err != nil {
		return nil, fmt.Errorf("block: decompress footer: %w", err)
	}
	if uint32(len(raw)) != uLen {
		return nil, fmt.Errorf("%w: footer length mismatch", common.ErrFormat)
	}
	if md5.Sum(raw) != want {
		return nil, fmt.Errorf("%w: footer checksum mismatch", common.ErrIntegrity)
	}
	return unmarshalFooter(raw)
}
