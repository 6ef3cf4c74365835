// Package crypt implements the C4 keychain and its AES-256-GCM container
// encryption. The keychain is the one process-wide mutable resource in the
// whole system (§5): a mutex-guarded id-indexed entry table, separate from
// the archive file it serves.
package crypt

import (
	"bytes"
	"crypto/rand"
	"io"
	"sync"

	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/iobuf"
)

// EncryptionType tags a keychain entry's cipher family. Only AES-256-GCM is
// implemented (§4.4); the tag is still explicit so the keychain file format
// can grow new types without breaking old readers.
type EncryptionType uint8

const EncTypeAESGCM256 EncryptionType = 1

// KeychainEntry is one ephemeral {key, iv, tag} tuple, identified by a
// random 64-bit id. Grounded on KeychainKeyGCM (original_source/include/encryption.h).
type KeychainEntry struct {
	Type EncryptionType
	ID   uint64
	Key  [32]byte
	IV   [16]byte
	Tag  [16]byte
}

var keychainMagic = [8]byte{'T', 'A', 'C', 'H', 'Y', 'O', 'N', 0}

// Keychain is the entry table. The zero value is not ready to use; call
// NewKeychain.
type Keychain struct {
	mu      sync.Mutex
	entries []KeychainEntry
	index   map[uint64]int
}

// NewKeychain returns an empty keychain.
func NewKeychain() *Keychain {
	return &Keychain{index: make(map[uint64]int)}
}

// Generate mints a fresh entry with a cryptographically random id (retried
// on collision), key and iv. The entry is not yet added to the keychain —
// callers add it with Add once encryption has produced a tag.
func (k *Keychain) Generate(t EncryptionType) (*KeychainEntry, error) {
	var id uint64
	for {
		candidate, err := common.RandUint64()
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		_, exists := k.index[candidate]
		k.mu.Unlock()
		if !exists {
			id = candidate
			break
		}
	}

	entry := &KeychainEntry{Type: t, ID: id}
	if _, err := rand.Read(entry.Key[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(entry.IV[:]); err != nil {
		return nil, err
	}
	return entry, nil
}

// Add inserts e, failing with ErrDuplicateID if its id is already present.
func (k *Keychain) Add(e KeychainEntry) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.index[e.ID]; exists {
		return ErrDuplicateID
	}
	k.index[e.ID] = len(k.entries)
	k.entries = append(k.entries, e)
	return nil
}

// Get looks up an entry by id.
func (k *Keychain) Get(id uint64) (KeychainEntry, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.index[id]
	if !ok {
		return KeychainEntry{}, false
	}
	return k.entries[idx], true
}

// Delete removes an entry by id, reindexing the tail. Used in tests (and by
// callers simulating key loss) to exercise the AuthError read path.
func (k *Keychain) Delete(id uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	idx, ok := k.index[id]
	if !ok {
		return false
	}
	k.entries = append(k.entries[:idx], k.entries[idx+1:]...)
	delete(k.index, id)
	for i := idx; i < len(k.entries); i++ {
		k.index[k.entries[i].ID] = i
	}
	return true
}

// Len returns the number of entries.
func (k *Keychain) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Merge appends other's entries, skipping any id already present. Grounded
// on Keychain::operator+= (original_source/include/encryption.h), used when
// combining keychains produced by independent parallel importers.
func (k *Keychain) Merge(other *Keychain) {
	other.mu.Lock()
	entries := append([]KeychainEntry(nil), other.entries...)
	other.mu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, e := range entries {
		if _, exists := k.index[e.ID]; exists {
			continue
		}
		k.index[e.ID] = len(k.entries)
		k.entries = append(k.entries, e)
	}
}

// WriteTo serializes the keychain in the §6 "Keychain file" layout:
// "TACHYON\0" || u64 n_entries || u64 n_capacity || entry[...].
func (k *Keychain) WriteTo(w io.Writer) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	buf := iobuf.NewWriter(8 + 16 + len(k.entries)*(1+8+32+16+16))
	buf.WriteBytes(keychainMagic[:])
	buf.WriteUint64(uint64(len(k.entries)))
	buf.WriteUint64(uint64(len(k.entries)))
	for _, e := range k.entries {
		buf.WriteByte(byte(e.Type))
		buf.WriteUint64(e.ID)
		buf.WriteBytes(e.Key[:])
		buf.WriteBytes(e.IV[:])
		if e.Type == EncTypeAESGCM256 {
			buf.WriteBytes(e.Tag[:])
		}
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom replaces the keychain's contents with the entries decoded from
// r, in the layout written by WriteTo.
func (k *Keychain) ReadFrom(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	br := iobuf.NewReader(data)

	magic, err := br.ReadBytes(8)
	if err != nil {
		return int64(len(data)), err
	}
	if !bytes.Equal(magic, keychainMagic[:]) {
		return int64(len(data)), ErrBadMagic
	}
	nEntries, err := br.ReadUint64()
	if err != nil {
		return int64(len(data)), err
	}
	if _, err := br.ReadUint64(); err != nil { // n_capacity, unused beyond the file
		return int64(len(data)), err
	}

	entries := make([]KeychainEntry, 0, nEntries)
	index := make(map[uint64]int, nEntries)
	for i := uint64(0); i < nEntries; i++ {
		typ, err := br.ReadByte()
		if err != nil {
			return int64(len(data)), err
		}
		id, err := br.ReadUint64()
		if err != nil {
			return int64(len(data)), err
		}
		keyBytes, err := br.ReadBytes(32)
		if err != nil {
			return int64(len(data)), err
		}
		ivBytes, err := br.ReadBytes(16)
		if err != nil {
			return int64(len(data)), err
		}
		entry := KeychainEntry{Type: EncryptionType(typ), ID: id}
		copy(entry.Key[:], keyBytes)
		copy(entry.IV[:], ivBytes)
		if entry.Type == EncTypeAESGCM256 {
			tagBytes, err := br.ReadBytes(16)
			if err != nil {
				return int64(len(data)), err
			}
			copy(entry.Tag[:], tagBytes)
		}
		index[id] = len(entries)
		entries = append(entries, entry)
	}

	k.mu.Lock()
	k.entries = entries
	k.index = index
	k.mu.Unlock()
	return int64(len(data)), nil
}
