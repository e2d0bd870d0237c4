package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// AES256KeySize is the KEK length accepted by EncryptAESGCM.
	AES256KeySize = 32
	// IVSize is the GCM nonce length written into sealed key payloads.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// AlgAES256GCM is the default entry alg for sealed payloads.
	AlgAES256GCM = "AES-256-GCM"
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AES256KeySize {
		return nil, inputErr("kek", fmt.Sprintf("must be %d bytes (AES-256), got %d", AES256KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}

// EncryptAESGCM encrypts plaintext under a 32-byte key with a fresh random
// IV drawn from crypto/rand. The tag is returned separately from the
// ciphertext.
func EncryptAESGCM(key, plaintext, aad []byte) (iv, ciphertext, tag []byte, err error) {
	g, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("iv: %w", err)
	}
	ctWithTag := g.Seal(nil, iv, plaintext, aad)
	n := len(ctWithTag) - g.Overhead()
	return iv, ctWithTag[:n], ctWithTag[n:], nil
}

// DecryptAESGCM reverses EncryptAESGCM. A tag mismatch yields
// ErrAuthentication.
func DecryptAESGCM(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	g, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != g.NonceSize() {
		return nil, inputErr("iv", fmt.Sprintf("bad size: %d", len(iv)))
	}
	if len(tag) != TagSize {
		return nil, inputErr("tag", fmt.Sprintf("bad size: %d", len(tag)))
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	pt, err := g.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", ErrAuthentication)
	}
	return pt, nil
}
