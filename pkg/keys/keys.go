// Package keys seals signing keys at rest with a master key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

// PurposeSigner scopes the key that seals the orchestrator's chain signer.
const PurposeSigner = "xchain-orchestrator/signer/v1"

const keySize = 32

// Cipher is AES-256-GCM under a key derived from the master key for one
// purpose.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the purpose key from masterKey with HKDF-SHA256.
func NewCipher(masterKey []byte, purpose string) (*Cipher, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("master key must be %d bytes (AES-256)", keySize)
	}

	derived := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(purpose)), derived); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(c.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encrypted string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptSignerKey seals a secp256k1 private key.
func EncryptSignerKey(key *ecdsa.PrivateKey, masterKey []byte) (string, error) {
	c, err := NewCipher(masterKey, PurposeSigner)
	if err != nil {
		return "", err
	}
	return c.Encrypt(crypto.FromECDSA(key))
}

// DecryptSignerKey opens a key sealed by EncryptSignerKey.
func DecryptSignerKey(encrypted string, masterKey []byte) (*ecdsa.PrivateKey, error) {
	c, err := NewCipher(masterKey, PurposeSigner)
	if err != nil {
		return nil, err
	}
	raw, err := c.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want %d", len(raw), keySize)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 key: %w", err)
	}
	return key, nil
}

// GenerateMasterKey returns a new random 32-byte master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(key))
	}
	return key, nil
}

// MasterKeyToBase64 encodes a master key as base64 for storage
func MasterKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// MasterKeyFromEnv reads a base64 master key from the named variable.
func MasterKeyFromEnv(name string) ([]byte, error) {
	encoded := os.Getenv(name)
	if encoded == "" {
		return nil, fmt.Errorf("master key not set: env=%s (hint: openssl rand -base64 32)", name)
	}
	key, err := MasterKeyFromBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid master key in %s: %w", name, err)
	}
	return key, nil
}
