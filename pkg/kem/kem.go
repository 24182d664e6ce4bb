// Package kem provides the key encapsulation mechanisms a handshake can run
// with, behind one byte-oriented interface.
//
// Real schemes are ML-KEM-768 and ML-KEM-1024 (FIPS 203, via circl) and
// CH-KEM, which cascades X25519 with ML-KEM-1024. Simulated is a
// placeholder with the same shape and no security; it is only selected when
// the caller explicitly allows insecure schemes.
package kem

import (
	"strings"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// KEM is a key encapsulation mechanism. Keys and ciphertexts are opaque
// byte strings in the scheme's own encoding.
type KEM interface {
	Name() string
	SecurityLevel() SecurityLevel
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(ciphertext, privateKey []byte) ([]byte, error)
}

// SecurityLevel tells real cryptography apart from the simulated stand-in.
type SecurityLevel int

const (
	SecurityLevelReal SecurityLevel = iota
	SecurityLevelSimulatedInsecure
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityLevelReal:
		return "real"
	case SecurityLevelSimulatedInsecure:
		return "simulated-insecure"
	default:
		return "unknown"
	}
}

// Scheme names accepted by Negotiate.
const (
	NameMLKEM768  = "ML-KEM-768"
	NameMLKEM1024 = "ML-KEM-1024"
	NameCHKEM     = "CH-KEM"
	NameSimulated = "SIMULATED"
)

// Default is the scheme used when none is requested.
const Default = NameMLKEM768

var registry = map[string]func() KEM{
	normalize(NameMLKEM768):  func() KEM { return NewMLKEM768() },
	normalize(NameMLKEM1024): func() KEM { return NewMLKEM1024() },
	normalize(NameCHKEM):     func() KEM { return NewCHKEM() },
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "_", "-")
}

// Names lists the real schemes.
func Names() []string {
	return []string{NameMLKEM768, NameMLKEM1024, NameCHKEM}
}

// Negotiate resolves a scheme name. An empty name selects Default. Names are
// matched case-insensitively. An unknown name, or an explicit request for the
// simulated scheme, resolves to Simulated only when allowInsecure is set.
func Negotiate(name string, allowInsecure bool) (KEM, error) {
	if name == "" {
		name = Default
	}
	key := normalize(name)
	if ctor, ok := registry[key]; ok {
		return ctor(), nil
	}
	if !allowInsecure {
		return nil, qerrors.NewKEMError("Negotiate", qerrors.ErrUnsupportedKEM)
	}
	return NewSimulated(), nil
}
