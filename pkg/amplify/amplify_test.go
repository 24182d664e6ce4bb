package amplify

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// expandReference is the two-step HMAC construction written out by hand.
func expandReference(bits []uint8, outLen int, salt []byte) []byte {
	if len(salt) == 0 {
		salt = make([]byte, sha256.Size)
	}
	mac := hmac.New(sha256.New, salt)
	mac.Write(PackBits(bits))
	prk := mac.Sum(nil)

	var okm, t []byte
	for counter := byte(1); len(okm) < outLen; counter++ {
		mac = hmac.New(sha256.New, prk)
		mac.Write(t)
		mac.Write([]byte{0x00, counter})
		t = mac.Sum(nil)
		okm = append(okm, t...)
	}
	return okm[:outLen]
}

func TestPackBits(t *testing.T) {
	tests := []struct {
		name string
		bits []uint8
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"single high bit", []uint8{1}, []byte{0x80}},
		{"full byte", []uint8{1, 0, 1, 0, 0, 0, 0, 1}, []byte{0xA1}},
		{"padded tail", []uint8{1, 1, 1, 1, 1, 1, 1, 1, 0, 1}, []byte{0xFF, 0x40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PackBits(tt.bits))
		})
	}
}

func TestAmplifyMatchesReference(t *testing.T) {
	bits := []uint8{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 1}
	for _, outLen := range []int{1, 16, 32, 33, 100} {
		got, err := Amplify(bits, outLen, []byte("bb84-salt"))
		require.NoError(t, err)
		assert.Equal(t, expandReference(bits, outLen, []byte("bb84-salt")), got)
	}
}

func TestAmplifyEmptySaltIsZeroSalt(t *testing.T) {
	bits := []uint8{0, 1, 1, 0}
	a, err := Amplify(bits, 32, nil)
	require.NoError(t, err)
	b, err := Amplify(bits, 32, make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAmplifySensitivity(t *testing.T) {
	bits := []uint8{1, 0, 1, 1, 0, 1, 0, 0}
	base, err := Amplify(bits, 32, []byte("bb84-salt"))
	require.NoError(t, err)

	otherSalt, err := Amplify(bits, 32, []byte("other"))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherSalt)

	flipped := append([]uint8(nil), bits...)
	flipped[3] ^= 1
	otherBits, err := Amplify(flipped, 32, []byte("bb84-salt"))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherBits)
}

func TestAmplifyEmptyInput(t *testing.T) {
	key, err := Amplify(nil, 32, []byte("bb84-salt"))
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestAmplifyInvalidLength(t *testing.T) {
	for _, n := range []int{0, -1, 255*32 + 1} {
		_, err := Amplify([]uint8{1}, n, nil)
		assert.ErrorIs(t, err, qerrors.ErrInvalidKeySize, "outLen %d", n)
	}

	key, err := Amplify([]uint8{1}, 255*32, nil)
	require.NoError(t, err)
	assert.Len(t, key, 255*32)
}

func TestKeyDefaults(t *testing.T) {
	bits := []uint8{1, 1, 0, 1}
	key, err := Key(bits)
	require.NoError(t, err)
	assert.Equal(t, expandReference(bits, 32, []byte("bb84-salt")), key)
}
