package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// Keyring entry holding the encryption key
const (
	KeyringService = "askkit"
	KeyringUser    = "local"
)

// LoadOrCreateKey returns the key kept in the OS keyring, generating and
// storing one on first use. When no keyring service is reachable the key is
// kept in a 0600 file at fallbackPath instead. A key found in that file while
// the keyring works is moved into the keyring and the file removed.
func LoadOrCreateKey(fallbackPath string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	secret, err := keyring.Get(KeyringService, KeyringUser)
	switch {
	case err == nil:
		return decodeKey(secret, "keyring entry")
	case !errors.Is(err, keyring.ErrNotFound):
		logger.Warn("keyring unavailable, using key file", "path", fallbackPath, "error", err)
		return loadOrCreateKeyFile(fallbackPath)
	}

	key, err := readKeyFile(fallbackPath)
	if err != nil {
		return nil, err
	}
	migrated := key != nil
	if key == nil {
		if key, err = newKey(); err != nil {
			return nil, err
		}
	}

	if err := keyring.Set(KeyringService, KeyringUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		logger.Warn("failed to store key in keyring, using key file", "path", fallbackPath, "error", err)
		if migrated {
			return key, nil
		}
		return key, writeKeyFile(fallbackPath, key)
	}
	if migrated {
		if err := os.Remove(fallbackPath); err != nil {
			logger.Warn("failed to remove migrated key file", "path", fallbackPath, "error", err)
		}
		logger.Info("moved key file into keyring", "path", fallbackPath)
	}
	return key, nil
}

// Open loads or creates the key and returns a cipher over it
func Open(fallbackPath string, logger *slog.Logger) (*AESGCM, error) {
	key, err := LoadOrCreateKey(fallbackPath, logger)
	if err != nil {
		return nil, err
	}
	return New(key)
}

func decodeKey(encoded, source string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, cipherError(fmt.Errorf("failed to decode %s: %w", source, err))
	}
	if len(key) != KeySize {
		return nil, cipherError(fmt.Errorf("%s holds %d bytes, want %d", source, len(key), KeySize))
	}
	return key, nil
}

func newKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, cipherError(fmt.Errorf("failed to generate key: %w", err))
	}
	return key, nil
}

// readKeyFile returns nil, nil when path does not exist
func readKeyFile(path string) ([]byte, error) {
	encoded, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cipherError(fmt.Errorf("failed to read key file: %w", err))
	}
	return decodeKey(string(encoded), "key file")
}

func writeKeyFile(path string, key []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return cipherError(fmt.Errorf("failed to create key directory: %w", err))
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return cipherError(fmt.Errorf("failed to write key file: %w", err))
	}
	return nil
}

func loadOrCreateKeyFile(path string) ([]byte, error) {
	key, err := readKeyFile(path)
	if err != nil || key != nil {
		return key, err
	}
	if key, err = newKey(); err != nil {
		return nil, err
	}
	return key, writeKeyFile(path, key)
}
