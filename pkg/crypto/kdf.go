// kdf.go implements the key derivation functions of the pipeline.
//
// Two constructions are used:
//
// HKDF-SHA256 (RFC 5869) for privacy amplification and for merging the KEM
// and QKD secrets into session keys. Extract compresses the input keying
// material under a salt; Expand stretches the pseudorandom key:
//
//	prk = HMAC-SHA256(salt, ikm)            (salt defaults to 32 zero bytes)
//	t_i = HMAC-SHA256(prk, t_{i-1} || info || i)
//	okm = t_1 || t_2 || ... truncated to L bytes, L <= 255*32
//
// SHAKE-256 / SHA3-256 (FIPS 202) for the CH-KEM combiner and for transcript
// hashing, where every component is length-prefixed with a 4-byte big-endian
// integer so that concatenations are unambiguous.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// SessionKeys holds the two directional keys produced by a handshake.
type SessionKeys struct {
	ClientKey []byte
	ServerKey []byte
}

// Zeroize erases both keys. The caller owns SessionKeys and must call this
// once the keys are no longer needed.
func (k *SessionKeys) Zeroize() {
	if k == nil {
		return
	}
	ZeroizeMultiple(k.ClientKey, k.ServerKey)
}

// HKDF runs HKDF-SHA256 extract-then-expand and returns outputLen bytes.
// An empty salt is replaced by HashLen zero bytes, as RFC 5869 specifies.
func HKDF(salt, ikm, info []byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > constants.MaxExpandSize {
		return nil, qerrors.NewCryptoError("HKDF", qerrors.ErrInvalidKeySize)
	}

	okm := make([]byte, outputLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), okm); err != nil {
		return nil, qerrors.NewCryptoError("HKDF", err)
	}
	return okm, nil
}

// DeriveSessionKeys merges the KEM and QKD shared secrets into a pair of
// session keys.
//
//	ikm = ssKEM || ssQKD
//	okm = HKDF-SHA256(salt = transcriptHash, ikm, info = "hybrid session keys", 2*outputLen)
//	client = okm[:outputLen], server = okm[outputLen:]
//
// ssQKD may be empty when policy allows a KEM-only session. The result is
// deterministic in its four inputs.
func DeriveSessionKeys(ssKEM, ssQKD, transcriptHash []byte, outputLen int) (*SessionKeys, error) {
	if len(ssKEM) == 0 {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", qerrors.ErrInvalidKeySize)
	}
	if outputLen <= 0 || 2*outputLen > constants.MaxExpandSize {
		return nil, qerrors.NewCryptoError("DeriveSessionKeys", qerrors.ErrInvalidKeySize)
	}

	ikm := make([]byte, 0, len(ssKEM)+len(ssQKD))
	ikm = append(ikm, ssKEM...)
	ikm = append(ikm, ssQKD...)
	defer Zeroize(ikm)

	okm, err := HKDF(transcriptHash, ikm, []byte(constants.SessionKeysInfo), 2*outputLen)
	if err != nil {
		return nil, err
	}

	return &SessionKeys{
		ClientKey: okm[:outputLen:outputLen],
		ServerKey: okm[outputLen:],
	}, nil
}

// DeriveKeyMultiple derives a key from multiple inputs with domain separation.
//
//	output = SHAKE-256(len(domain) || domain || count || len(in_1) || in_1 || ..., outputLen)
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 {
		return nil, qerrors.NewCryptoError("DeriveKeyMultiple", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(domain)))
	h.Write(lenBuf)
	h.Write([]byte(domain))

	binary.BigEndian.PutUint32(lenBuf, uint32(len(inputs)))
	h.Write(lenBuf)

	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		h.Write(lenBuf)
		h.Write(input)
	}

	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// TranscriptHash computes SHA3-256 over length-prefixed components.
// Changing, reordering or re-splitting any component changes the hash.
func TranscriptHash(components ...[]byte) []byte {
	h := sha3.New256()
	lenBuf := make([]byte, 4)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(components)))
	h.Write(lenBuf)

	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(component)))
		h.Write(lenBuf)
		h.Write(component)
	}

	return h.Sum(nil)
}

// DeriveCHKEMSecret combines the X25519 and ML-KEM secrets of a CH-KEM
// exchange, bound to the exchange transcript.
//
//	K = SHAKE-256(K_x25519 || K_mlkem || transcript_hash, 256)
func DeriveCHKEMSecret(x25519Secret, mlkemSecret, transcriptHash []byte) ([]byte, error) {
	if len(x25519Secret) != constants.X25519SharedSecretSize {
		return nil, qerrors.NewCryptoError("DeriveCHKEMSecret", qerrors.ErrInvalidKeySize)
	}
	if len(mlkemSecret) != constants.MLKEMSharedSecretSize {
		return nil, qerrors.NewCryptoError("DeriveCHKEMSecret", qerrors.ErrInvalidKeySize)
	}
	if len(transcriptHash) != constants.TranscriptHashSize {
		return nil, qerrors.NewCryptoError("DeriveCHKEMSecret", qerrors.ErrInvalidKeySize)
	}

	return DeriveKeyMultiple(
		constants.DomainSeparatorCHKEM,
		[][]byte{x25519Secret, mlkemSecret, transcriptHash},
		constants.CHKEMSharedSecretSize,
	)
}
