package kem

import (
	"crypto/sha256"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

// Simulated mimics a KEM without any hardness assumption: keys and
// ciphertexts are random strings and the shared secret is
// SHA-256(ciphertext || publicKey). Anyone holding the public key and the
// ciphertext can compute the secret.
//
// The private key is the 64 random secret bytes followed by the public key,
// so decapsulation needs nothing beyond the interface arguments.
type Simulated struct{}

// NewSimulated returns the insecure simulated KEM.
func NewSimulated() *Simulated {
	return &Simulated{}
}

func (Simulated) Name() string { return NameSimulated }
func (Simulated) SecurityLevel() SecurityLevel { return SecurityLevelSimulatedInsecure }

func (s Simulated) GenerateKeyPair() ([]byte, []byte, error) {
	buf, err := crypto.SecureRandomBytes(constants.SimulatedSecretKeySize + constants.SimulatedPublicKeySize)
	if err != nil {
		return nil, nil, qerrors.NewKEMError("SIMULATED.GenerateKeyPair", err)
	}
	pk := make([]byte, constants.SimulatedPublicKeySize)
	copy(pk, buf[constants.SimulatedSecretKeySize:])
	return pk, buf, nil
}

func (s Simulated) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != constants.SimulatedPublicKeySize {
		return nil, nil, qerrors.NewKEMError("SIMULATED.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	ct, err := crypto.SecureRandomBytes(constants.SimulatedCiphertextSize)
	if err != nil {
		return nil, nil, qerrors.NewKEMError("SIMULATED.Encapsulate", err)
	}
	return ct, simulatedSecret(ct, publicKey), nil
}

func (s Simulated) Decapsulate(ciphertext, privateKey []byte) ([]byte, error) {
	if len(ciphertext) != constants.SimulatedCiphertextSize {
		return nil, qerrors.NewKEMError("SIMULATED.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if len(privateKey) != constants.SimulatedSecretKeySize+constants.SimulatedPublicKeySize {
		return nil, qerrors.NewKEMError("SIMULATED.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	return simulatedSecret(ciphertext, privateKey[constants.SimulatedSecretKeySize:]), nil
}

func simulatedSecret(ct, pk []byte) []byte {
	h := sha256.New()
	h.Write(ct)
	h.Write(pk)
	return h.Sum(nil)
}
