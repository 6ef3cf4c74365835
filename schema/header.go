// Package schema implements the archive's global header (C11): the
// append-only contig/info/format/filter dictionaries that every block's
// local field ids are minted against and resolved through. Grounded on
// original_source/include/variant_container.h and header_footer.h, laid
// out the way erigon-lib/kv/tables.go enumerates its table namespace as one
// file owning the whole schema surface.
package schema

import (
	"fmt"
	"io"
	"sync"

	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/container"
	"github.com/tachyon-archive/tachyon/iobuf"
)

// ContigEntry is one entry in the contig dictionary.
type ContigEntry struct {
	Name    string
	Length  int64
	NBlocks uint32
}

// InfoEntry is one entry in the INFO field dictionary.
type InfoEntry struct {
	Name        string
	WireType    container.Type
	Description string
}

// FormatEntry is one entry in the FORMAT field dictionary.
type FormatEntry struct {
	Name        string
	WireType    container.Type
	Description string
}

// FilterEntry is one entry in the FILTER dictionary.
type FilterEntry struct {
	Name        string
	Description string
}

// Header is the archive's global header: four ordered, append-only
// dictionaries plus the global-id minting logic. It is built incrementally
// during import, Sealed once before the first block is written, and shared
// read-only by every reader thereafter (§5).
type Header struct {
	mu     sync.Mutex
	sealed bool

	contigs     []ContigEntry
	contigIndex map[string]uint32

	info      []InfoEntry
	infoIndex map[string]uint32

	format      []FormatEntry
	formatIndex map[string]uint32

	filter      []FilterEntry
	filterIndex map[string]uint32
}

// New returns an empty, unsealed Header.
func New() *Header {
	return &Header{
		contigIndex: make(map[string]uint32),
		infoIndex:   make(map[string]uint32),
		formatIndex: make(map[string]uint32),
		filterIndex: make(map[string]uint32),
	}
}

// ErrSealed is returned by the Add* methods once the header has been sealed.
var ErrSealed = fmt.Errorf("schema: %w: header is sealed", common.ErrFormat)

// Seal freezes the dictionaries; no further Add* calls succeed.
func (h *Header) Seal() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sealed = true
}

// Sealed reports whether the header has been sealed.
func (h *Header) Sealed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sealed
}

// AddContig mints or returns the global id for a contig name, first-seen
// order.
func (h *Header) AddContig(name string, length int64) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.contigIndex[name]; ok {
		return id, nil
	}
	if h.sealed {
		return 0, ErrSealed
	}
	id := uint32(len(h.contigs))
	h.contigs = append(h.contigs, ContigEntry{Name: name, Length: length})
	h.contigIndex[name] = id
	return id, nil
}

// AddInfo mints or returns the global id for an INFO field.
func (h *Header) AddInfo(name string, wireType container.Type, description string) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.infoIndex[name]; ok {
		return id, nil
	}
	if h.sealed {
		return 0, ErrSealed
	}
	id := uint32(len(h.info))
	h.info = append(h.info, InfoEntry{Name: name, WireType: wireType, Description: description})
	h.infoIndex[name] = id
	return id, nil
}

// AddFormat mints or returns the global id for a FORMAT field.
func (h *Header) AddFormat(name string, wireType container.Type, description string) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.formatIndex[name]; ok {
		return id, nil
	}
	if h.sealed {
		return 0, ErrSealed
	}
	id := uint32(len(h.format))
	h.format = append(h.format, FormatEntry{Name: name, WireType: wireType, Description: description})
	h.formatIndex[name] = id
	return id, nil
}

// AddFilter mints or returns the global id for a FILTER.
func (h *Header) AddFilter(name, description string) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.filterIndex[name]; ok {
		return id, nil
	}
	if h.sealed {
		return 0, ErrSealed
	}
	id := uint32(len(h.filter))
	h.filter = append(h.filter, FilterEntry{Name: name, Description: description})
	h.filterIndex[name] = id
	return id, nil
}

// InfoIDByName resolves an INFO field name to its global id, used by the
// load planner to turn a user-supplied field name into an id before
// intersecting against a block's local dictionary.
func (h *Header) InfoIDByName(name string) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.infoIndex[name]
	return id, ok
}

// FormatIDByName resolves a FORMAT field name to its global id.
func (h *Header) FormatIDByName(name string) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.formatIndex[name]
	return id, ok
}

func (h *Header) Contig(id uint32) (ContigEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.contigs) {
		return ContigEntry{}, false
	}
	return h.contigs[id], true
}

func (h *Header) Info(id uint32) (InfoEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.info) {
		return InfoEntry{}, false
	}
	return h.info[id], true
}

func (h *Header) Format(id uint32) (FormatEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.format) {
		return FormatEntry{}, false
	}
	return h.format[id], true
}

func (h *Header) Filter(id uint32) (FilterEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.filter) {
		return FilterEntry{}, false
	}
	return h.filter[id], true
}

func (h *Header) NContigs() int { h.mu.Lock(); defer h.mu.Unlock(); return len(h.contigs) }
func (h *Header) NInfo() int    { h.mu.Lock(); defer h.mu.Unlock(); return len(h.info) }
func (h *Header) NFormat() int  { h.mu.Lock(); defer h.mu.Unlock(); return len(h.format) }
func (h *Header) NFilter() int  { h.mu.Lock(); defer h.mu.Unlock(); return len(h.filter) }

// IncrementContigBlocks bumps the block count recorded against a contig.
// Called by the archive writer as blocks are finalized; it is a bookkeeping
// update only and does not reopen the dictionary for new names.
func (h *Header) IncrementContigBlocks(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) < len(h.contigs) {
		h.contigs[id].NBlocks++
	}
}

// WriteTo serializes the header: counts, then each dictionary in order
// (contig, info, format, filter).
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := iobuf.NewWriter(256)
	buf.WriteUint32(uint32(len(h.contigs)))
	for _, c := range h.contigs {
		buf.WriteString(c.Name)
		buf.WriteInt64(c.Length)
		buf.WriteUint32(c.NBlocks)
	}
	buf.WriteUint32(uint32(len(h.info)))
	for _, f := range h.info {
		buf.WriteString(f.Name)
		buf.WriteByte(byte(f.WireType))
		buf.WriteString(f.Description)
	}
	buf.WriteUint32(uint32(len(h.format)))
	for _, f := range h.format {
		buf.WriteString(f.Name)
		buf.WriteByte(byte(f.WireType))
		buf.WriteString(f.Description)
	}
	buf.WriteUint32(uint32(len(h.filter)))
	for _, f := range h.filter {
		buf.WriteString(f.Name)
		buf.WriteString(f.Description)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom deserializes a header written by WriteTo. The result is always
// sealed, since a header read back from an archive is by construction final.
func ReadFrom(r *iobuf.Reader) (*Header, error) {
	h := New()

	nContigs, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("schema: read contig count: %w", err)
	}
	h.contigs = make([]ContigEntry, nContigs)
	for i := range h.contigs {
		name, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("schema: read contig %d name: %w", i, err)
		}
		length, err := r.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("schema: read contig %d length: %w", i, err)
		}
		nBlocks, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("schema: read contig %d block count: %w", i, err)
		}
		h.contigs[i] = ContigEntry{Name: name, Length: length, NBlocks: nBlocks}
		h.contigIndex[name] = uint32(i)
	}

	nInfo, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("schema: read info count: %w", err)
	}
	h.info = make([]InfoEntry, nInfo)
	for i := range h.info {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		wt, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		desc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		h.info[i] = InfoEntry{Name: name, WireType: container.Type(wt), Description: desc}
		h.infoIndex[name] = uint32(i)
	}

	nFormat, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("schema: read format count: %w", err)
	}
	h.format = make([]FormatEntry, nFormat)
	for i := range h.format {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		wt, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		desc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		h.format[i] = FormatEntry{Name: name, WireType: container.Type(wt), Description: desc}
		h.formatIndex[name] = uint32(i)
	}

	nFilter, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("schema: read filter count: %w", err)
	}
	h.filter = make([]FilterEntry, nFilter)
	for i := range h.filter {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		desc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		h.filter[i] = FilterEntry{Name: name, Description: desc}
		h.filterIndex[name] = uint32(i)
	}

	h.sealed = true
	return h, nil
}
