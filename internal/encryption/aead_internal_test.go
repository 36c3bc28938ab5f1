package encryption

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	working, err := NewTestAEAD()
	require.NoError(t, err)

	tests := []struct {
		name    string
		aead    fakeAEAD
		wantErr string
	}{
		{
			name:    "encrypt failure",
			aead:    fakeAEAD{encryptErr: errors.New("encrypt broken")},
			wantErr: "validation encrypt failed",
		},
		{
			name:    "decrypt failure",
			aead:    fakeAEAD{decryptErr: errors.New("decrypt broken")},
			wantErr: "validation decrypt failed",
		},
		{
			name:    "plaintext mismatch",
			aead:    fakeAEAD{decryptTo: []byte("something else")},
			wantErr: "validation round-trip failed",
		},
	}

	assert.NoError(t, Validate(working))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.aead)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKeysetFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyset.json")

	require.NoError(t, WriteKeysetFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	primitive, err := NewAEADFromKeysetFile(path)
	require.NoError(t, err)

	ct, err := primitive.Encrypt([]byte("token"), []byte("key"))
	require.NoError(t, err)

	// a second read of the same file decrypts what the first produced
	again, err := NewAEADFromKeysetFile(path)
	require.NoError(t, err)

	pt, err := again.Decrypt(ct, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("token"), pt)
}

func TestWriteKeysetFile_DoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyset.json")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))

	err := WriteKeysetFile(path)
	assert.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
}

func TestNewAEADFromKeysetFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewAEADFromKeysetFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "opening keyset file")

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not a keyset"), 0o600))

	_, err = NewAEADFromKeysetFile(garbage)
	assert.ErrorContains(t, err, "reading keyset")
}

// fakeAEAD is a pass-through tink.AEAD that can be told to fail or to
// return unexpected plaintext.
type fakeAEAD struct {
	id         string
	encryptErr error
	decryptErr error
	decryptTo  []byte
}

func (f *fakeAEAD) Encrypt(plaintext, _ []byte) ([]byte, error) {
	if f.encryptErr != nil {
		return nil, f.encryptErr
	}
	return plaintext, nil
}

func (f *fakeAEAD) Decrypt(ciphertext, _ []byte) ([]byte, error) {
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	if f.decryptTo != nil {
		return f.decryptTo, nil
	}
	return ciphertext, nil
}
