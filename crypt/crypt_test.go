package crypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tachyon-archive/tachyon/compress"
	"github.com/tachyon-archive/tachyon/container"
)

func buildFloatContainer(t *testing.T, n int) *container.Container {
	t.Helper()
	c := container.New(1)
	for i := 0; i < n; i++ {
		require.NoError(t, c.AddFloat32(float32(i)*0.5))
	}
	require.NoError(t, c.UpdateContainer(true, false))
	require.NoError(t, compress.Apply(c))
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kc := NewKeychain()
	c := buildFloatContainer(t, 1000)
	wantMD5 := c.DataMD5
	wantUncompressed := append([]byte(nil), c.DataUncompressed...)

	require.NoError(t, EncryptContainer(kc, c))
	require.Equal(t, container.EncryptionAESGCM256, c.Header.Encryption)

	require.NoError(t, DecryptContainer(kc, c))
	require.Equal(t, container.EncryptionNone, c.Header.Encryption)

	decompressed, err := compress.Decode(c.Header.Encoder, c.Data)
	require.NoError(t, err)
	require.True(t, bytes.Equal(wantUncompressed, decompressed))
	require.Equal(t, wantMD5, c.DataMD5)
}

// TestMissingKeychainEntryFailsAuth exercises seed scenario 5: encrypt,
// drop the keychain entry, confirm the read fails with AuthError-equivalent,
// then restore it and confirm the read now succeeds.
func TestMissingKeychainEntryFailsAuth(t *testing.T) {
	kc := NewKeychain()
	c := buildFloatContainer(t, 1000)

	require.NoError(t, EncryptContainer(kc, c))
	id := c.Identifier

	entry, ok := kc.Get(id)
	require.True(t, ok)
	require.True(t, kc.Delete(id))

	err := DecryptContainer(kc, c)
	require.ErrorIs(t, err, ErrMissingKeychainEntry)

	require.NoError(t, kc.Add(entry))
	require.NoError(t, DecryptContainer(kc, c))
}

func TestDecryptWrongTagFailsAuth(t *testing.T) {
	kc := NewKeychain()
	c := buildFloatContainer(t, 100)
	require.NoError(t, EncryptContainer(kc, c))

	entry, ok := kc.Get(c.Identifier)
	require.True(t, ok)
	entry.Tag[0] ^= 0xFF
	kc2 := NewKeychain()
	require.NoError(t, kc2.Add(entry))

	err := DecryptContainer(kc2, c)
	require.ErrorIs(t, err, ErrAuth)
}

func TestKeychainWriteReadRoundTrip(t *testing.T) {
	kc := NewKeychain()
	e1, err := kc.Generate(EncTypeAESGCM256)
	require.NoError(t, err)
	e1.Tag[0] = 1
	require.NoError(t, kc.Add(*e1))
	e2, err := kc.Generate(EncTypeAESGCM256)
	require.NoError(t, err)
	e2.Tag[0] = 2
	require.NoError(t, kc.Add(*e2))

	var buf bytes.Buffer
	_, err = kc.WriteTo(&buf)
	require.NoError(t, err)

	out := NewKeychain()
	_, err = out.ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	got1, ok := out.Get(e1.ID)
	require.True(t, ok)
	require.Equal(t, *e1, got1)
}

func TestKeychainMerge(t *testing.T) {
	a := NewKeychain()
	b := NewKeychain()
	e1, _ := a.Generate(EncTypeAESGCM256)
	require.NoError(t, a.Add(*e1))
	e2, _ := b.Generate(EncTypeAESGCM256)
	require.NoError(t, b.Add(*e2))

	a.Merge(b)
	require.Equal(t, 2, a.Len())
	_, ok := a.Get(e2.ID)
	require.True(t, ok)
}

func TestKeychainAddDuplicateID(t *testing.T) {
	kc := NewKeychain()
	e, _ := kc.Generate(EncTypeAESGCM256)
	require.NoError(t, kc.Add(*e))
	require.ErrorIs(t, kc.Add(*e), ErrDuplicateID)
}
