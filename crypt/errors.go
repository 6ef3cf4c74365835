package crypt

import "errors"

var (
	// ErrNotSealed mirrors compress.ErrNotSealed for containers passed to
	// EncryptContainer before UpdateContainer has run.
	ErrNotSealed = errors.New("crypt: container not sealed")
	// ErrMissingKeychainEntry is returned when decryption is attempted with
	// no matching keychain entry for the container's identifier (§7 AuthError).
	ErrMissingKeychainEntry = errors.New("crypt: missing keychain entry")
	// ErrAuth is returned when AES-GCM tag verification fails.
	ErrAuth = errors.New("crypt: authentication failed")
	// ErrDuplicateID is returned by Keychain.Add for an id collision.
	ErrDuplicateID = errors.New("crypt: duplicate keychain id")
	// ErrBadMagic is returned by Keychain.ReadFrom for a malformed file.
	ErrBadMagic = errors.New("crypt: bad keychain magic")
)
