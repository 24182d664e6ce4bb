// Package auth signs handshake transcripts so a peer can check who produced
// them. ML-DSA-65 (FIPS 204) is the post-quantum default; Ed25519 is kept
// for interoperability with classical deployments.
package auth

import (
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// Scheme names.
const (
	SchemeMLDSA65 = "ML-DSA-65"
	SchemeEd25519 = "Ed25519"
)

// DefaultScheme is used when no scheme is named.
const DefaultScheme = SchemeMLDSA65

func lookup(name string) (sign.Scheme, error) {
	if name == "" {
		name = DefaultScheme
	}
	switch strings.ToUpper(name) {
	case strings.ToUpper(SchemeMLDSA65):
		return mldsa65.Scheme(), nil
	case strings.ToUpper(SchemeEd25519):
		return ed25519.Scheme(), nil
	default:
		return nil, fmt.Errorf("%w: %q", qerrors.ErrUnsupportedSignature, name)
	}
}

// Signer holds one signing key pair.
type Signer struct {
	scheme sign.Scheme
	pk     sign.PublicKey
	sk     sign.PrivateKey
	pkRaw  []byte
}

// NewSigner generates a fresh key pair for the named scheme.
func NewSigner(scheme string) (*Signer, error) {
	s, err := lookup(scheme)
	if err != nil {
		return nil, err
	}
	pk, sk, err := s.GenerateKey()
	if err != nil {
		return nil, qerrors.NewCryptoError(s.Name()+".GenerateKey", err)
	}
	return newSigner(s, pk, sk)
}

// NewSignerFromSeed derives the key pair deterministically from seed, which
// must be exactly the scheme's seed size.
func NewSignerFromSeed(scheme string, seed []byte) (*Signer, error) {
	s, err := lookup(scheme)
	if err != nil {
		return nil, err
	}
	if len(seed) != s.SeedSize() {
		return nil, qerrors.NewCryptoError(s.Name()+".DeriveKey", qerrors.ErrInvalidKeySize)
	}
	pk, sk := s.DeriveKey(seed)
	return newSigner(s, pk, sk)
}

func newSigner(s sign.Scheme, pk sign.PublicKey, sk sign.PrivateKey) (*Signer, error) {
	raw, err := pk.MarshalBinary()
	if err != nil {
		return nil, qerrors.NewCryptoError(s.Name()+".MarshalPublicKey", err)
	}
	return &Signer{scheme: s, pk: pk, sk: sk, pkRaw: raw}, nil
}

// Scheme returns the scheme name.
func (s *Signer) Scheme() string {
	return s.scheme.Name()
}

// PublicKey returns the encoded public key.
func (s *Signer) PublicKey() []byte {
	out := make([]byte, len(s.pkRaw))
	copy(out, s.pkRaw)
	return out
}

// Sign signs msg.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	if s == nil || s.sk == nil {
		return nil, qerrors.NewCryptoError("Sign", qerrors.ErrInvalidPrivateKey)
	}
	return s.scheme.Sign(s.sk, msg, nil), nil
}

// Verify checks sig over msg against the encoded public key pub, using the
// signer's scheme.
func (s *Signer) Verify(pub, msg, sig []byte) error {
	return verify(s.scheme, pub, msg, sig)
}

// Verify checks a signature for the named scheme.
func Verify(scheme string, pub, msg, sig []byte) error {
	s, err := lookup(scheme)
	if err != nil {
		return err
	}
	return verify(s, pub, msg, sig)
}

func verify(s sign.Scheme, pub, msg, sig []byte) error {
	pk, err := s.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return qerrors.NewCryptoError(s.Name()+".Verify", qerrors.ErrInvalidPublicKey)
	}
	if len(sig) != s.SignatureSize() || !s.Verify(pk, msg, sig, nil) {
		return qerrors.ErrSignatureInvalid
	}
	return nil
}
