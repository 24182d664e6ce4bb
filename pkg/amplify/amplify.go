// Package amplify compresses a reconciled bit sequence into a short uniform
// key. The sequence is packed into bytes and run through HKDF-SHA256 with a
// public salt, so that partial information leaked during reconciliation does
// not carry over to the output.
package amplify

import (
	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

// PackBits packs bits MSB-first into ceil(len/8) bytes. The final byte is
// zero-padded in its low-order positions.
func PackBits(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b&1 == 1 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

// Amplify derives outLen bytes from bits. An empty salt selects the
// all-zero salt. The output is deterministic in (bits, outLen, salt).
//
// outLen must be in (0, 255*32]; an empty bit sequence is accepted and
// yields the HKDF output for an empty input key.
func Amplify(bits []uint8, outLen int, salt []byte) ([]byte, error) {
	ikm := PackBits(bits)
	defer crypto.Zeroize(ikm)

	return crypto.HKDF(salt, ikm, []byte{constants.AmplificationLabel}, outLen)
}

// Key applies Amplify with the default salt and key size.
func Key(bits []uint8) ([]byte, error) {
	return Amplify(bits, constants.DistilledKeySize, []byte(constants.AmplificationSalt))
}
