package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tachyon-archive/tachyon/block"
	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/crypt"
	"github.com/tachyon-archive/tachyon/iobuf"
	"github.com/tachyon-archive/tachyon/schema"
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger attaches a logger for archive-level diagnostics.
func WithReaderLogger(l *zap.Logger) ReaderOption { return func(r *Reader) { r.logger = l } }

// WithReaderKeychain supplies the keychain used to decrypt blocks that have
// encrypted streams.
func WithReaderKeychain(kc *crypt.Keychain) ReaderOption {
	return func(r *Reader) { r.keychain = kc }
}

// blockLoc records where one block lives in the underlying bytes, found
// while scanning the block stream on Open.
type blockLoc struct {
	start, end int // [start,end) within the archive's block-stream region
}

// Reader loads an entire archive's bytes into memory and gives
// random- and sequential-access to its blocks (§4.10 "reads the magic, the
// global header, seeks to the footer by its fixed end offset ... loads the
// footer, and positions for streaming or for index-guided seek").
//
// The teacher's block.Reader already eagerly decodes a block from a byte
// slice; this Reader works the same way one level up, holding the whole
// archive's bytes and handing block.ReadBlock a sub-slice per block rather
// than streaming incrementally, since tachyon archives are flat files
// (§1 Non-goals).
type Reader struct {
	Version Version
	Header  *schema.Header
	Footer  Footer

	data       []byte
	blockStart int // byte offset of the first block, relative to data
	blocks     []blockLoc

	keychain *crypt.Keychain
	logger   *zap.Logger
}

// Open parses the magic header, the global header and the footer, and
// scans the block stream to locate every block's byte range. data must
// hold the entire archive.
func Open(data []byte, opts ...ReaderOption) (*Reader, error) {
	ar := &Reader{data: data, logger: zap.NewNop()}
	for _, o := range opts {
		o(ar)
	}

	r := iobuf.NewReader(data)
	v, err := readMagic(r)
	if err != nil {
		return nil, err
	}
	ar.Version = v

	header, err := schema.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("archive: read global header: %w", err)
	}
	ar.Header = header
	ar.blockStart = r.Pos()

	if len(data) < footerFixedSize {
		return nil, fmt.Errorf("%w: archive: truncated, shorter than one footer", common.ErrFormat)
	}
	footerReader := iobuf.NewReader(data[len(data)-footerFixedSize:])
	footer, err := readFooter(footerReader)
	if err != nil {
		return nil, err
	}
	ar.Footer = footer

	end := int(footer.EndOfData)
	if end < ar.blockStart || end > len(data)-footerFixedSize {
		return nil, fmt.Errorf("%w: archive: footer end_of_data out of range", common.ErrFormat)
	}

	if err := ar.scanBlocks(end); err != nil {
		return nil, err
	}
	if uint64(len(ar.blocks)) != footer.NBlocks {
		return nil, fmt.Errorf("%w: archive: footer declares %d blocks, found %d",
			common.ErrFormat, footer.NBlocks, len(ar.blocks))
	}
	return ar, nil
}

// scanBlocks walks the block stream [blockStart, end) by reading each
// block's own header (which carries OffsetToFooter) to find where it ends,
// since blocks are variable-length and self-describing (§3).
func (ar *Reader) scanBlocks(end int) error {
	pos := ar.blockStart
	for pos < end {
		r := iobuf.NewReader(ar.data[pos:end])
		h, err := block.ReadHeader(r)
		if err != nil {
			return fmt.Errorf("archive: scan block at offset %d: %w", pos, err)
		}
		blockLen := block.HeaderByteSize + int(h.OffsetToFooter)
		footerPos := pos + blockLen
		if footerPos+8 > end {
			return fmt.Errorf("%w: archive: block at offset %d overruns block stream", common.ErrFormat, pos)
		}
		eofR := iobuf.NewReader(ar.data[footerPos:])
		// the footer's own length is self-describing only once parsed, and
		// the fixed eof marker directly follows it; skipBlockFooter parses
		// the footer and consumes the marker, leaving eofR at the block end.
		if err := skipBlockFooter(eofR); err != nil {
			return fmt.Errorf("archive: scan block at offset %d: %w", pos, err)
		}
		blockEnd := pos + blockLen + (eofR.Pos())
		ar.blocks = append(ar.blocks, blockLoc{start: pos, end: blockEnd})
		pos = blockEnd
	}
	return nil
}

// skipBlockFooter advances r past one block footer and its trailing
// 8-byte EOF marker (block.BlockEOFMarker) by decoding the footer with
// block.ReadFooterFrom, discarding it, and then consuming the marker.
func skipBlockFooter(r *iobuf.Reader) error {
	if _, err := block.ReadFooterFrom(r); err != nil {
		return err
	}
	if _, err := r.ReadUint64(); err != nil {
		return err
	}
	return nil
}

// NBlocks returns the number of blocks located in the archive.
func (ar *Reader) NBlocks() int { return len(ar.blocks) }

// ReadBlock fully decodes block i.
func (ar *Reader) ReadBlock(i int) (*block.Reader, error) {
	if i < 0 || i >= len(ar.blocks) {
		return nil, fmt.Errorf("%w: archive: block index %d out of range", common.ErrFormat, i)
	}
	loc := ar.blocks[i]
	var opts []block.ReaderOption
	if ar.keychain != nil {
		opts = append(opts, block.ReaderWithKeychain(ar.keychain))
	}
	opts = append(opts, block.ReaderWithLogger(ar.logger))
	return block.ReadBlock(ar.data[loc.start:loc.end], opts...)
}

// ReadBlocks decodes every block whose index is in ids concurrently, using
// one goroutine per block, all started at once through an errgroup (§5
// "Readers may decode multiple blocks concurrently; every block is a
// self-contained unit"). The result preserves the order of ids. Decodes
// already started are not cancelled on failure: ReadBlocks waits for all
// of them and returns the first error.
func (ar *Reader) ReadBlocks(ctx context.Context, ids []int) ([]*block.Reader, error) {
	out := make([]*block.Reader, len(ids))
	g, _ := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rd, err := ar.ReadBlock(id)
			if err != nil {
				return err
			}
			out[i] = rd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadAll returns a fresh io.Reader over the whole archive's bytes, for
// callers that want to re-verify the magic/header independently (e.g. a
// CRC scan tool); unused by the in-memory open path above.
func (ar *Reader) ReadAll() io.Reader { return bytes.NewReader(ar.data) }
