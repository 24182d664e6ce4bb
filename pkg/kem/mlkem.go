package kem

import (
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

// MLKEM adapts a circl ML-KEM parameter set to the KEM interface.
type MLKEM struct {
	inner *crypto.MLKEM
}

// NewMLKEM768 returns ML-KEM-768 (NIST Category 3).
func NewMLKEM768() *MLKEM {
	return &MLKEM{inner: crypto.NewMLKEM768()}
}

// NewMLKEM1024 returns ML-KEM-1024 (NIST Category 5).
func NewMLKEM1024() *MLKEM {
	return &MLKEM{inner: crypto.NewMLKEM1024()}
}

func (m *MLKEM) Name() string { return m.inner.Name() }
func (m *MLKEM) SecurityLevel() SecurityLevel { return SecurityLevelReal }

func (m *MLKEM) GenerateKeyPair() ([]byte, []byte, error) {
	pk, sk, err := m.inner.GenerateKeyPair()
	if err != nil {
		return nil, nil, qerrors.NewKEMError(m.Name()+".GenerateKeyPair", err)
	}
	return pk, sk, nil
}

func (m *MLKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	ct, ss, err := m.inner.Encapsulate(publicKey)
	if err != nil {
		return nil, nil, qerrors.NewKEMError(m.Name()+".Encapsulate", err)
	}
	return ct, ss, nil
}

func (m *MLKEM) Decapsulate(ciphertext, privateKey []byte) ([]byte, error) {
	ss, err := m.inner.Decapsulate(ciphertext, privateKey)
	if err != nil {
		return nil, qerrors.NewKEMError(m.Name()+".Decapsulate", err)
	}
	return ss, nil
}
