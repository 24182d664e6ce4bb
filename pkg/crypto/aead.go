// aead.go implements the authenticated encryption consumed by applications
// once session keys exist.
//
// Supported suites:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs
//   - ChaCha20-Poly1305: fast without AES hardware support
//
// Both use a 96-bit nonce and a 128-bit tag. A (key, nonce) pair must never
// be reused; Seal draws a fresh random nonce per message and prefixes it to
// the ciphertext, SealWithNonce leaves nonce management to the caller.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// AEAD represents an authenticated encryption cipher bound to one key.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
}

// NewAEAD creates a new AEAD cipher with the specified suite and 32-byte key.
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}

	var aeadCipher cipher.AEAD

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		var err error
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.ErrUnsupportedCipherSuite
	}

	return &AEAD{cipher: aeadCipher, suite: suite}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
//
// Returns: nonce (12 bytes) || encrypted_data || auth_tag
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	out := make([]byte, constants.AESNonceSize, constants.AESNonceSize+len(plaintext)+a.cipher.Overhead())
	if err := SecureRandom(out); err != nil {
		return nil, err
	}
	return a.cipher.Seal(out, out[:constants.AESNonceSize], plaintext, additionalData), nil
}

// Open splits the nonce prefix written by Seal and decrypts the rest.
func (a *AEAD) Open(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < constants.MinSealedSize {
		return nil, qerrors.ErrCiphertextTooShort
	}
	return a.OpenWithNonce(sealed[:constants.AESNonceSize], sealed[constants.AESNonceSize:], additionalData)
}

// SealWithNonce encrypts using an explicit nonce.
//
// WARNING: The caller is responsible for ensuring nonce uniqueness.
//
// Returns: encrypted_data || auth_tag (nonce not included)
func (a *AEAD) SealWithNonce(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.ErrInvalidNonce
	}
	return a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// OpenWithNonce verifies and decrypts ciphertext produced by SealWithNonce.
// Any tampering with nonce, ciphertext or additional data yields
// ErrAuthenticationFailed.
func (a *AEAD) OpenWithNonce(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) < constants.AESTagSize {
		return nil, qerrors.ErrCiphertextTooShort
	}

	plaintext, err := a.cipher.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the bytes added by Seal: nonce plus authentication tag.
func (a *AEAD) Overhead() int {
	return constants.AESNonceSize + a.cipher.Overhead()
}

// Encrypt is the one-shot form of NewAEAD + SealWithNonce.
func Encrypt(suite constants.CipherSuite, key, nonce, plaintext, additionalData []byte) ([]byte, error) {
	a, err := NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	return a.SealWithNonce(nonce, plaintext, additionalData)
}

// Decrypt is the one-shot form of NewAEAD + OpenWithNonce.
func Decrypt(suite constants.CipherSuite, key, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	a, err := NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	return a.OpenWithNonce(nonce, ciphertext, additionalData)
}
