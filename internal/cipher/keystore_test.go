package cipher

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadOrCreateKey_UsesKeyring(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "askkit.key")

	first, err := LoadOrCreateKey(path, discardLogger())
	require.NoError(t, err)
	assert.Len(t, first, KeySize)
	assert.NoFileExists(t, path)

	stored, err := keyring.Get(KeyringService, KeyringUser)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(first), stored)

	second, err := LoadOrCreateKey(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateKey_MovesKeyFileIntoKeyring(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "askkit.key")
	key := bytes.Repeat([]byte{3}, KeySize)
	require.NoError(t, writeKeyFile(path, key))

	got, err := LoadOrCreateKey(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.NoFileExists(t, path)

	stored, err := keyring.Get(KeyringService, KeyringUser)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(key), stored)
}

func TestLoadOrCreateKey_FileWhenKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	path := filepath.Join(t.TempDir(), "keys", "askkit.key")

	first, err := LoadOrCreateKey(path, discardLogger())
	require.NoError(t, err)
	assert.Len(t, first, KeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	c1, err := Open(path, discardLogger())
	require.NoError(t, err)
	sealed, err := c1.Encrypt("persisted")
	require.NoError(t, err)
	c2, err := Open(path, discardLogger())
	require.NoError(t, err)
	plain, err := c2.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "persisted", plain)
}

func TestLoadOrCreateKey_CorruptEntries(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(KeyringService, KeyringUser, "c2hvcnQ="))
	_, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "askkit.key"), discardLogger())
	assert.Error(t, err)

	keyring.MockInitWithError(errors.New("no secret service"))
	path := filepath.Join(t.TempDir(), "askkit.key")
	require.NoError(t, os.WriteFile(path, []byte("c2hvcnQ="), 0600))
	_, err = LoadOrCreateKey(path, discardLogger())
	assert.Error(t, err)
}

func TestLoadOrCreateKey_NilLogger(t *testing.T) {
	_, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "askkit.key"), nil)
	assert.Error(t, err)
}
