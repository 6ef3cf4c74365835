package crypt

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/tachyon-archive/tachyon/container"
	"github.com/tachyon-archive/tachyon/iobuf"
)

// Encrypt seals plaintext under entry's key/iv with AES-256-GCM (§4.4),
// storing the resulting 128-bit tag into entry.Tag and returning the
// ciphertext alone.
func Encrypt(entry *KeychainEntry, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(entry.Key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(entry.IV))
	if err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, entry.IV[:], plaintext, nil)
	ctLen := len(sealed) - gcm.Overhead()
	copy(entry.Tag[:], sealed[ctLen:])
	return sealed[:ctLen], nil
}

// Decrypt opens ciphertext under entry's key/iv/tag, returning ErrAuth on
// tag mismatch (§7 AuthError).
func Decrypt(entry *KeychainEntry, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(entry.Key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(entry.IV))
	if err != nil {
		return nil, err
	}
	combined := make([]byte, 0, len(ciphertext)+len(entry.Tag))
	combined = append(combined, ciphertext...)
	combined = append(combined, entry.Tag[:]...)
	plaintext, err := gcm.Open(nil, entry.IV[:], combined, nil)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}

// EncryptContainer implements §4.4's plaintext layout: serialized container
// metadata (identifier, counts, both stream headers, both buffer lengths,
// both MD5s) followed by the compressed data buffer then the compressed
// stride buffer, all sealed as one AES-256-GCM ciphertext. The container's
// Data field becomes that ciphertext; Stride is cleared (folded into Data);
// Identifier becomes the keychain lookup key; Header.Encryption is stamped.
func EncryptContainer(kc *Keychain, c *container.Container) error {
	if !c.Sealed() {
		return ErrNotSealed
	}

	entry, err := kc.Generate(EncTypeAESGCM256)
	if err != nil {
		return err
	}

	w := iobuf.NewWriter(0)
	c.SerializeMeta(w)
	w.WriteBytes(c.Data)
	w.WriteBytes(c.Stride)

	ciphertext, err := Encrypt(entry, w.Bytes())
	if err != nil {
		return err
	}
	if err := kc.Add(*entry); err != nil {
		return err
	}

	c.Data = ciphertext
	c.Stride = nil
	c.Header.Encryption = container.EncryptionAESGCM256
	c.Identifier = entry.ID
	return nil
}

// DecryptContainer is the inverse of EncryptContainer: it looks up the
// keychain entry by c.Identifier, decrypts, and restores c's metadata and
// Data/Stride buffers from the recovered plaintext.
func DecryptContainer(kc *Keychain, c *container.Container) error {
	entry, ok := kc.Get(c.Identifier)
	if !ok {
		return ErrMissingKeychainEntry
	}

	plaintext, err := Decrypt(&entry, c.Data)
	if err != nil {
		return err
	}

	r := iobuf.NewReader(plaintext)
	dataLen, strideLen, err := c.DeserializeMeta(r)
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(dataLen)
	if err != nil {
		return err
	}
	c.Data = append([]byte(nil), data...)

	if strideLen > 0 {
		stride, err := r.ReadBytes(strideLen)
		if err != nil {
			return err
		}
		c.Stride = append([]byte(nil), stride...)
	}

	c.Header.Encryption = container.EncryptionNone
	return nil
}
