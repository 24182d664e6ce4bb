// mlkem.go wraps the ML-KEM key encapsulation mechanism (NIST FIPS 203)
// from circl behind a byte-oriented API.
//
// ML-KEM security rests on the Module Learning With Errors problem over
// R_q = Z_q[X]/(X^256 + 1), q = 3329. ML-KEM-768 targets NIST Category 3,
// ML-KEM-1024 Category 5. Both produce a 32-byte shared secret, and
// decapsulation of a tampered ciphertext returns a pseudorandom secret
// (implicit rejection) rather than an error.
package crypto

import (
	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// MLKEM is one ML-KEM parameter set. Keys and ciphertexts are raw encodings.
type MLKEM struct {
	name   string
	scheme kem.Scheme
}

// NewMLKEM768 returns the ML-KEM-768 parameter set.
func NewMLKEM768() *MLKEM {
	return &MLKEM{name: "ML-KEM-768", scheme: mlkem768.Scheme()}
}

// NewMLKEM1024 returns the ML-KEM-1024 parameter set.
func NewMLKEM1024() *MLKEM {
	return &MLKEM{name: "ML-KEM-1024", scheme: mlkem1024.Scheme()}
}

// Name returns the parameter set name, e.g. "ML-KEM-1024".
func (m *MLKEM) Name() string {
	return m.name
}

// PublicKeySize returns the encapsulation key size in bytes.
func (m *MLKEM) PublicKeySize() int { return m.scheme.PublicKeySize() }

// PrivateKeySize returns the decapsulation key size in bytes.
func (m *MLKEM) PrivateKeySize() int { return m.scheme.PrivateKeySize() }

// CiphertextSize returns the ciphertext size in bytes.
func (m *MLKEM) CiphertextSize() int { return m.scheme.CiphertextSize() }

// GenerateKeyPair derives a key pair from a fresh CSPRNG seed.
func (m *MLKEM) GenerateKeyPair() (publicKey, privateKey []byte, err error) {
	seed := make([]byte, m.scheme.SeedSize())
	if err := SecureRandom(seed); err != nil {
		return nil, nil, err
	}
	defer Zeroize(seed)

	return m.KeyPairFromSeed(seed)
}

// KeyPairFromSeed deterministically derives a key pair. The same seed always
// yields the same pair.
func (m *MLKEM) KeyPairFromSeed(seed []byte) (publicKey, privateKey []byte, err error) {
	if len(seed) != m.scheme.SeedSize() {
		return nil, nil, qerrors.ErrInvalidKeySize
	}

	pk, sk := m.scheme.DeriveKeyPair(seed)
	if publicKey, err = pk.MarshalBinary(); err != nil {
		return nil, nil, qerrors.NewCryptoError(m.Name()+".GenerateKeyPair", err)
	}
	if privateKey, err = sk.MarshalBinary(); err != nil {
		return nil, nil, qerrors.NewCryptoError(m.Name()+".GenerateKeyPair", err)
	}
	return publicKey, privateKey, nil
}

// Encapsulate produces a ciphertext and 32-byte shared secret for publicKey.
func (m *MLKEM) Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(publicKey) != m.scheme.PublicKeySize() {
		return nil, nil, qerrors.ErrInvalidPublicKey
	}
	pk, err := m.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(m.Name()+".Encapsulate", qerrors.ErrInvalidPublicKey)
	}

	seed := make([]byte, m.scheme.EncapsulationSeedSize())
	if err := SecureRandom(seed); err != nil {
		return nil, nil, err
	}
	defer Zeroize(seed)

	ciphertext, sharedSecret, err = m.scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, qerrors.NewCryptoError(m.Name()+".Encapsulate", err)
	}
	return ciphertext, sharedSecret, nil
}

// Decapsulate recovers the shared secret from ciphertext.
func (m *MLKEM) Decapsulate(ciphertext, privateKey []byte) ([]byte, error) {
	if len(privateKey) != m.scheme.PrivateKeySize() {
		return nil, qerrors.ErrInvalidPrivateKey
	}
	if len(ciphertext) != m.scheme.CiphertextSize() {
		return nil, qerrors.ErrInvalidCiphertext
	}

	sk, err := m.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, qerrors.NewCryptoError(m.Name()+".Decapsulate", qerrors.ErrInvalidPrivateKey)
	}

	sharedSecret, err := m.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, qerrors.NewCryptoError(m.Name()+".Decapsulate", err)
	}
	return sharedSecret, nil
}
