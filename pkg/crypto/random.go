// Package crypto provides the cryptographic primitives used by the hybrid
// key establishment pipeline: randomness, key derivation, AEAD and thin
// wrappers over ML-KEM and X25519.
//
// Two kinds of randomness are provided. Key material (KEM seeds, nonces)
// always comes from crypto/rand. The BB84 simulation draws from a
// per-session *rand.Rand so that a session can be replayed from its seed;
// production sessions seed that generator from the CSPRNG.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// SecureRandom reads cryptographically secure random bytes into the provided slice.
// It uses crypto/rand.Read which sources entropy from the OS CSPRNG.
func SecureRandom(b []byte) error {
	_, err := io.ReadFull(Reader, b)
	if err != nil {
		return qerrors.NewCryptoError("SecureRandom", err)
	}
	return nil
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MustSecureRandom reads cryptographically secure random bytes into the provided slice.
// It panics if the system's CSPRNG fails, as this indicates a critical system failure.
func MustSecureRandom(b []byte) {
	if err := SecureRandom(b); err != nil {
		panic("crypto: failed to read from CSPRNG: " + err.Error())
	}
}

// Reader is an io.Reader that returns cryptographically secure random bytes.
var Reader = rand.Reader

// NewSessionRand returns a simulation RNG owned by a single session, backed
// by ChaCha8 and seeded from the CSPRNG.
func NewSessionRand() (*mrand.Rand, error) {
	var seed [32]byte
	if err := SecureRandom(seed[:]); err != nil {
		return nil, err
	}
	return mrand.New(mrand.NewChaCha8(seed)), nil
}

// NewSeededRand returns a reproducible simulation RNG. Two generators built
// from the same seed produce identical streams.
func NewSeededRand(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DeriveSeed returns the seed of the i-th child stream of a parent seed.
// Used to give concurrent sessions independent reproducible generators.
func DeriveSeed(parent uint64, i int) uint64 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], parent)
	binary.BigEndian.PutUint64(buf[8:], uint64(i))
	sum := TranscriptHash([]byte("seed"), buf[:])
	return binary.BigEndian.Uint64(sum[:8])
}

// ConstantTimeCompare compares two byte slices in constant time.
// Returns true if the slices are equal, false otherwise.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites sensitive data with zeros.
//
// Note: The Go runtime may have already copied the data. This limits how
// long a secret stays reachable but is not a guarantee.
func Zeroize(b []byte) {
	clear(b)
}

// ZeroizeMultiple erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
