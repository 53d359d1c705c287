// Package cipher encrypts agent api keys at rest with AES-256-GCM.
// Ciphertexts are base64 encoded with the nonce prepended.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"AskKit/internal/models"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

// Cipher encrypts and decrypts strings
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESGCM implements Cipher
type AESGCM struct {
	aead gocipher.AEAD
}

func cipherError(err error) error {
	return models.NewAppError(models.KindCipher, err)
}

// New creates an AES-GCM cipher from a 32 byte key
func New(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, cipherError(fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cipherError(fmt.Errorf("failed to create block cipher: %w", err))
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, cipherError(fmt.Errorf("failed to create gcm: %w", err))
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *AESGCM) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", cipherError(fmt.Errorf("failed to generate nonce: %w", err))
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt
func (c *AESGCM) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", cipherError(fmt.Errorf("failed to decode ciphertext: %w", err))
	}
	n := c.aead.NonceSize()
	if len(raw) < n {
		return "", cipherError(errors.New("ciphertext too short"))
	}
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", cipherError(fmt.Errorf("failed to decrypt: %w", err))
	}
	return string(plain), nil
}
