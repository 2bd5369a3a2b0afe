// Package crypt implements the asset container: AES-256-GCM with a random
// 96-bit nonce stored in front of the ciphertext.
//
// Layout: nonce (12 bytes) || ciphertext || tag (16 bytes)
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce length stored at the start of every file.
	NonceSize = 12
	// Overhead is the number of bytes a sealed payload adds to its plaintext.
	Overhead = NonceSize + 16
)

// Common errors
var (
	ErrKeySize            = errors.New("key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce and tag")
	ErrAuth               = errors.New("message authentication failed")
)

// Key is an AES-256 key.
type Key [KeySize]byte

// KeyFunc produces the decryption key. It is called once per load so the
// plain key never has to live in long-lived memory.
type KeyFunc func() Key

// Open authenticates and decrypts a sealed payload.
func Open(data []byte, key Key) ([]byte, error) {
	if len(data) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(data))
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, ct := data[:NonceSize], data[NonceSize:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrAuth
	}
	return plain, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func Seal(plaintext []byte, key Key) ([]byte, error) {
	return SealWithReader(rand.Reader, plaintext, key)
}

// SealWithReader is Seal with an explicit nonce source.
func SealWithReader(r io.Reader, plaintext []byte, key Key) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

func newAEAD(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// MaskedKey holds the key split into an obfuscated half and a mask.
// The real key is their XOR.
type MaskedKey struct {
	Obfuscated Key
	Mask       Key
}

// NewMaskedKey builds a MaskedKey from raw 32-byte slices.
func NewMaskedKey(obfuscated, mask []byte) (MaskedKey, error) {
	var mk MaskedKey
	if len(obfuscated) != KeySize || len(mask) != KeySize {
		return mk, fmt.Errorf("%w: got %d and %d", ErrKeySize, len(obfuscated), len(mask))
	}
	copy(mk.Obfuscated[:], obfuscated)
	copy(mk.Mask[:], mask)
	return mk, nil
}

// LoadMaskedKey reads the obfuscated key and mask files.
func LoadMaskedKey(keyPath, maskPath string) (MaskedKey, error) {
	obf, err := os.ReadFile(keyPath)
	if err != nil {
		return MaskedKey{}, fmt.Errorf("reading key: %w", err)
	}
	mask, err := os.ReadFile(maskPath)
	if err != nil {
		return MaskedKey{}, fmt.Errorf("reading mask: %w", err)
	}
	return NewMaskedKey(obf, mask)
}

// Reconstruct returns Obfuscated XOR Mask.
func (mk MaskedKey) Reconstruct() Key {
	var k Key
	for i := range k {
		k[i] = mk.Obfuscated[i] ^ mk.Mask[i]
	}
	return k
}

// Split derives a MaskedKey for key using a random mask.
func Split(key Key) (MaskedKey, error) {
	var mk MaskedKey
	if _, err := io.ReadFull(rand.Reader, mk.Mask[:]); err != nil {
		return mk, err
	}
	for i := range key {
		mk.Obfuscated[i] = key[i] ^ mk.Mask[i]
	}
	return mk, nil
}

// Static returns a KeyFunc that always yields key. Intended for tools and tests.
func Static(key Key) KeyFunc {
	return func() Key { return key }
}
