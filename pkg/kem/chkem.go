package kem

import (
	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

// CHKEM is the Cascaded Hybrid KEM: X25519 and ML-KEM-1024 run side by side
// and their secrets are combined with SHAKE-256 over the exchange
// transcript. The combined secret stays safe as long as either component is.
//
// Key generation:
//
//	(sk_x, pk_x) <- X25519.KeyGen()
//	(sk_m, pk_m) <- ML-KEM-1024.KeyGen()
//	pk = pk_x || pk_m
//	sk = sk_x || sk_m || pk_m
//
// Encapsulation:
//
//	(ct_m, K_m) <- ML-KEM-1024.Encaps(pk_m)
//	(sk_e, pk_e) <- X25519.KeyGen()
//	K_x <- X25519(sk_e, pk_x)
//	ct = pk_e || ct_m
//	K = SHAKE-256("CH-KEM-v1-SharedSecret", K_x, K_m, SHA3-256(pk_x, pk_m, pk_e, ct_m))
//
// Decapsulation recomputes K_x from sk_x and pk_e, K_m from sk_m and ct_m,
// and derives the same K.
type CHKEM struct {
	mlkem *crypto.MLKEM
}

// NewCHKEM returns the X25519 + ML-KEM-1024 cascade.
func NewCHKEM() *CHKEM {
	return &CHKEM{mlkem: crypto.NewMLKEM1024()}
}

func (c *CHKEM) Name() string { return NameCHKEM }
func (c *CHKEM) SecurityLevel() SecurityLevel { return SecurityLevelReal }

func (c *CHKEM) GenerateKeyPair() ([]byte, []byte, error) {
	xkp, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.GenerateKeyPair", err)
	}
	mpk, msk, err := c.mlkem.GenerateKeyPair()
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.GenerateKeyPair", err)
	}

	pk := make([]byte, 0, constants.CHKEMPublicKeySize)
	pk = append(pk, xkp.PublicKeyBytes()...)
	pk = append(pk, mpk...)

	sk := make([]byte, 0, constants.CHKEMPrivateKeySize)
	sk = append(sk, xkp.PrivateKeyBytes()...)
	sk = append(sk, msk...)
	sk = append(sk, mpk...)
	crypto.Zeroize(msk)

	return pk, sk, nil
}

func (c *CHKEM) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != constants.CHKEMPublicKeySize {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	xpkBytes := publicKey[:constants.X25519PublicKeySize]
	mpk := publicKey[constants.X25519PublicKeySize:]

	xpk, err := crypto.ParseX25519PublicKey(xpkBytes)
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", err)
	}

	eph, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", err)
	}
	xss, err := crypto.X25519(eph.PrivateKey, xpk)
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", err)
	}
	defer crypto.Zeroize(xss)

	mct, mss, err := c.mlkem.Encapsulate(mpk)
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", err)
	}
	defer crypto.Zeroize(mss)

	ct := make([]byte, 0, constants.CHKEMCiphertextSize)
	ct = append(ct, eph.PublicKeyBytes()...)
	ct = append(ct, mct...)

	ss, err := crypto.DeriveCHKEMSecret(xss, mss, crypto.TranscriptHash(xpkBytes, mpk, ct[:constants.X25519PublicKeySize], mct))
	if err != nil {
		return nil, nil, qerrors.NewKEMError("CH-KEM.Encapsulate", err)
	}
	return ct, ss, nil
}

func (c *CHKEM) Decapsulate(ciphertext, privateKey []byte) ([]byte, error) {
	if len(ciphertext) != constants.CHKEMCiphertextSize {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if len(privateKey) != constants.CHKEMPrivateKeySize {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}

	xsk := privateKey[:constants.X25519PrivateKeySize]
	msk := privateKey[constants.X25519PrivateKeySize : constants.X25519PrivateKeySize+constants.MLKEM1024PrivateKeySize]
	mpk := privateKey[constants.X25519PrivateKeySize+constants.MLKEM1024PrivateKeySize:]
	ephBytes := ciphertext[:constants.X25519PublicKeySize]
	mct := ciphertext[constants.X25519PublicKeySize:]

	xkp, err := crypto.NewX25519KeyPairFromBytes(xsk)
	if err != nil {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", err)
	}
	eph, err := crypto.ParseX25519PublicKey(ephBytes)
	if err != nil {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", err)
	}
	xss, err := crypto.X25519(xkp.PrivateKey, eph)
	if err != nil {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", err)
	}
	defer crypto.Zeroize(xss)

	mss, err := c.mlkem.Decapsulate(mct, msk)
	if err != nil {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", err)
	}
	defer crypto.Zeroize(mss)

	ss, err := crypto.DeriveCHKEMSecret(xss, mss, crypto.TranscriptHash(xkp.PublicKeyBytes(), mpk, ephBytes, mct))
	if err != nil {
		return nil, qerrors.NewKEMError("CH-KEM.Decapsulate", err)
	}
	return ss, nil
}
