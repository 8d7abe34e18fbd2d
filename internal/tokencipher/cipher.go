// Package tokencipher provides authenticated encryption for OAuth tokens
// stored at rest. Artifacts are AES-256-GCM with the wire form
// hex(iv):hex(tag):hex(ciphertext).
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

var (
	// ErrEmptyInput rejects encryption or decryption of empty strings.
	ErrEmptyInput = errors.New("tokencipher: input is empty")
	// ErrMalformedArtifact indicates the artifact does not split into three
	// non-empty hex segments.
	ErrMalformedArtifact = errors.New("tokencipher: malformed artifact")
	// ErrAuthentication indicates tag verification failed: the artifact was
	// tampered with or encrypted under a different key.
	ErrAuthentication = errors.New("tokencipher: authentication failed")
)

// Cipher encrypts and decrypts opaque token strings with a fixed 256-bit key.
type Cipher struct {
	aead cipher.AEAD
}

// New constructs a Cipher. The key must be exactly 32 bytes.
func New(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("tokencipher: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokencipher: init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("tokencipher: init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh random nonce. Each call produces
// a distinct artifact; the nonce is never reused under the same key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyInput
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("tokencipher: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an artifact produced by Encrypt. It is all-or-nothing: any
// malformed segment or failed tag check returns an error and no plaintext.
func (c *Cipher) Decrypt(artifact string) (string, error) {
	if artifact == "" {
		return "", ErrEmptyInput
	}

	parts := strings.Split(artifact, ":")
	if len(parts) != 3 {
		return "", ErrMalformedArtifact
	}

	nonce, err := decodeSegment(parts[0])
	if err != nil {
		return "", err
	}
	tag, err := decodeSegment(parts[1])
	if err != nil {
		return "", err
	}
	ciphertext, err := decodeSegment(parts[2])
	if err != nil {
		return "", err
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return "", ErrMalformedArtifact
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

func decodeSegment(segment string) ([]byte, error) {
	if segment == "" {
		return nil, ErrMalformedArtifact
	}
	decoded, err := hex.DecodeString(segment)
	if err != nil {
		return nil, ErrMalformedArtifact
	}
	return decoded, nil
}
