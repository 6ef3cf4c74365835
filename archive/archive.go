// Package archive implements the C10 archive writer/reader: the magic
// header, the global header framing, the sequence of variant blocks, the
// archive footer, and the final EOF marker. Grounded on
// original_source/include/variant_container.h and header_footer.h for the
// global layout, and on spec.md §4.10 for the exact frame shapes, in the
// style of erigon-lib's snapshot file framing (fixed preamble, streaming
// body, fixed trailer).
package archive

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/crypt"
	"github.com/tachyon-archive/tachyon/iobuf"
	"github.com/tachyon-archive/tachyon/index"
	"github.com/tachyon-archive/tachyon/schema"
)

// magic is the fixed 8-byte archive signature (§4.10 "TACHYON\0").
var magic = [8]byte{'T', 'A', 'C', 'H', 'Y', 'O', 'N', 0}

// Version is the on-disk format version written into the magic header.
type Version struct {
	Major, Minor, Patch uint32
}

// CurrentVersion is the version this package writes.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// footerEOFMarker is the fixed 22-byte trailer that both closes the archive
// footer and lets a reader find the footer's start by seeking back from
// end-of-file: len(marker) + the 8+8+8+2 fixed-width footer fields is a
// constant, known offset from the end of the file (§4.10).
var footerEOFMarker = [22]byte{
	'T', 'A', 'C', 'H', 'Y', 'O', 'N', '-', 'E', 'O', 'F',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// footerFixedSize is end_of_data(8) + n_blocks(8) + n_variants(8) +
// controller(2) + eof_marker(22).
const footerFixedSize = 8 + 8 + 8 + 2 + 22

// footerControllerEncrypted marks that at least one block in the archive
// has an encrypted stream, mirroring block.Header.AnyEncrypted at the
// archive level so a reader can fail fast without a keychain.
const footerControllerEncrypted uint16 = 1 << 0

// Footer is the archive footer (§4.10): the byte offset where block data
// ends (i.e. where the footer itself begins), and summary counts.
type Footer struct {
	EndOfData  uint64
	NBlocks    uint64
	NVariants  uint64
	Controller uint16
}

func (f Footer) writeTo(w *iobuf.Writer) {
	w.WriteUint64(f.EndOfData)
	w.WriteUint64(f.NBlocks)
	w.WriteUint64(f.NVariants)
	w.WriteUint16(f.Controller)
	w.WriteBytes(footerEOFMarker[:])
}

func readFooter(r *iobuf.Reader) (Footer, error) {
	var f Footer
	var err error
	if f.EndOfData, err = r.ReadUint64(); err != nil {
		return f, fmt.Errorf("archive: read footer end_of_data: %w", err)
	}
	if f.NBlocks, err = r.ReadUint64(); err != nil {
		return f, fmt.Errorf("archive: read footer n_blocks: %w", err)
	}
	if f.NVariants, err = r.ReadUint64(); err != nil {
		return f, fmt.Errorf("archive: read footer n_variants: %w", err)
	}
	if f.Controller, err = r.ReadUint16(); err != nil {
		return f, fmt.Errorf("archive: read footer controller: %w", err)
	}
	marker, err := r.ReadBytes(len(footerEOFMarker))
	if err != nil {
		return f, fmt.Errorf("archive: read footer eof marker: %w", err)
	}
	for i, b := range marker {
		if b != footerEOFMarker[i] {
			return f, fmt.Errorf("%w: archive: corrupt footer eof marker", common.ErrFormat)
		}
	}
	return f, nil
}

func writeMagic(w *iobuf.Writer, v Version) {
	w.WriteBytes(magic[:])
	w.WriteUint32(v.Major)
	w.WriteUint32(v.Minor)
	w.WriteUint32(v.Patch)
}

func readMagic(r *iobuf.Reader) (Version, error) {
	got, err := r.ReadBytes(len(magic))
	if err != nil {
		return Version{}, fmt.Errorf("archive: read magic: %w", err)
	}
	for i, b := range got {
		if b != magic[i] {
			return Version{}, fmt.Errorf("%w: archive: not a tachyon archive", common.ErrFormat)
		}
	}
	var v Version
	if v.Major, err = r.ReadUint32(); err != nil {
		return v, fmt.Errorf("archive: read version major: %w", err)
	}
	if v.Minor, err = r.ReadUint32(); err != nil {
		return v, fmt.Errorf("archive: read version minor: %w", err)
	}
	if v.Patch, err = r.ReadUint32(); err != nil {
		return v, fmt.Errorf("archive: read version patch: %w", err)
	}
	return v, nil
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger attaches a logger for archive-level diagnostics (block
// emission, index updates); defaults to a no-op logger.
func WithWriterLogger(l *zap.Logger) WriterOption { return func(w *Writer) { w.logger = l } }

// WithWriterKeychain attaches the keychain used by blocks that request
// encryption; ownership stays with the caller, who may continue to mutate
// it (append new entries) between blocks (§5 "keychain is the only
// process-wide mutable resource").
func WithWriterKeychain(kc *crypt.Keychain) WriterOption {
	return func(w *Writer) { w.keychain = kc }
}

// WithWriterIndex supplies the index to update as blocks are finalized. If
// omitted, a fresh index.New() is used.
func WithWriterIndex(ix *index.Index) WriterOption { return func(w *Writer) { w.index = ix } }

// Writer serializes an archive to an io.Writer: magic, global header, a
// stream of finalized blocks, then the footer (§4.10). It buffers at most
// one open block.Writer at a time; FinalizeBlock seals it, writes it, and
// updates the index before the next contig's block begins.
type Writer struct {
	w      io.Writer
	header *schema.Header
	index  *index.Index

	logger   *zap.Logger
	keychain *crypt.Keychain

	cursor    uint64 // bytes written so far, magic and header included (absolute file offset)
	nBlocks   uint64
	nVariants uint64
	anyEncrypted bool

	open *block.Writer
}

// NewWriter writes the magic header and the (sealed) global header to w,
// then returns a Writer ready to accept blocks. header must already contain
// every contig/INFO/FORMAT/FILTER entry the archive will use; NewWriter
// seals it (§4.10 "the archive writer seals the header once before the
// first block is written").
func NewWriter(w io.Writer, header *schema.Header, opts ...WriterOption) (*Writer, error) {
	aw := &Writer{w: w, header: header, logger: zap.NewNop(), index: index.New()}
	for _, o := range opts {
		o(aw)
	}

	header.Seal()

	buf := iobuf.NewWriter(64)
	writeMagic(buf, CurrentVersion)
	mn, err := w.Write(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: archive: write magic: %v", common.ErrIO, err)
	}

	hn, err := header.WriteTo(w)
	if err != nil {
		return nil, fmt.Errorf("%w: archive: write global header: %v", common.ErrIO, err)
	}
	// cursor must track the same absolute-from-file-start coordinate space
	// Open() uses for EndOfData (magic + global header + every block), so
	// it starts counting from the magic bytes, not just the header's.
	aw.cursor = uint64(mn) + uint64(hn)

	return aw, nil
}

// OpenBlock starts a new block.Writer on contigID, carrying over this
// Writer's logger and keychain. Only one block may be open at a time; call
// FinalizeBlock before opening the next.
func (aw *Writer) OpenBlock(contigID uint32, opts ...block.Option) (*block.Writer, error) {
	if aw.open != nil {
		return nil, fmt.Errorf("%w: archive: a block is already open, call FinalizeBlock first", common.ErrFormat)
	}
	all := append([]block.Option{block.WithLogger(aw.logger)}, opts...)
	if aw.keychain != nil {
		all = append(all, block.WithKeychain(aw.keychain))
	}
	aw.open = block.NewWriter(contigID, all...)
	return aw.open, nil
}

// FinalizeBlock seals the currently open block, writes it to the
// underlying stream, and updates the linear and quad-tree index (§4.10
// "the writer buffers at most one open block, writes on Finalize, updates
// the linear and quad-tree index").
func (aw *Writer) FinalizeBlock(contigLength int64) error {
	if aw.open == nil {
		return fmt.Errorf("%w: archive: no open block to finalize", common.ErrFormat)
	}
	w := aw.open
	aw.open = nil

	nVariants := w.NVariants()
	if nVariants == 0 {
		return nil
	}
	positions := w.Positions()

	sealed, err := w.Finalize()
	if err != nil {
		return fmt.Errorf("archive: finalize block: %w", err)
	}

	blockID := uint32(aw.nBlocks)
	n, err := aw.w.Write(sealed.Bytes())
	if err != nil {
		return fmt.Errorf("%w: archive: write block %d: %v", common.ErrIO, blockID, err)
	}
	aw.cursor += uint64(n)
	aw.nBlocks++
	aw.nVariants += uint64(nVariants)
	if sealed.Header.AnyEncrypted {
		aw.anyEncrypted = true
	}

	if err := aw.index.AddSorted(sealed.Header.ContigID, sealed.Header.MinPos, sealed.Header.MaxPos, blockID); err != nil {
		return fmt.Errorf("archive: index block %d: %w", blockID, err)
	}
	for _, pos := range positions {
		aw.index.IndexRecord(sealed.Header.ContigID, pos, pos, contigLength, blockID)
	}
	aw.header.IncrementContigBlocks(sealed.Header.ContigID)

	aw.logger.Debug("finalized block",
		zap.Uint32("block_id", blockID),
		zap.Uint32("contig_id", sealed.Header.ContigID),
		zap.Int32("n_variants", sealed.Header.NVariants),
	)
	return nil
}

// Index returns the index accumulated so far; useful for a caller that
// wants to persist it alongside the archive or inspect it mid-write.
func (aw *Writer) Index() *index.Index { return aw.index }

// Close writes the archive footer (§4.10), closing out the archive. The
// Writer must not be used again afterward.
func (aw *Writer) Close() error {
	if aw.open != nil {
		return fmt.Errorf("%w: archive: a block is still open, call FinalizeBlock first", common.ErrFormat)
	}

	var controller uint16
	if aw.anyEncrypted {
		controller |= footerControllerEncrypted
	}
	footer := Footer{
		EndOfData:  aw.cursor,
		NBlocks:    aw.nBlocks,
		NVariants:  aw.nVariants,
		Controller: controller,
	}

	buf := iobuf.NewWriter(footerFixedSize)
	footer.writeTo(buf)
	if _, err := aw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: archive: write footer: %v", common.ErrIO, err)
	}
	return nil
}
