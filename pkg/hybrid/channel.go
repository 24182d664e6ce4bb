package hybrid

import (
	"context"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// SecureChannel encrypts application messages under one session key. Sealed
// messages are nonce || ciphertext || tag.
type SecureChannel struct {
	aead  *crypto.AEAD
	instr *metrics.InstrumentedChannel
}

// NewSecureChannel creates a channel keyed with key. A nil collector or
// tracer falls back to the globals.
func NewSecureChannel(suite constants.CipherSuite, key []byte, c *metrics.Collector, t metrics.Tracer) (*SecureChannel, error) {
	aead, err := crypto.NewAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	return &SecureChannel{
		aead:  aead,
		instr: metrics.NewInstrumentedChannel(c, t, nil),
	}, nil
}

// Seal encrypts plaintext bound to the associated data ad.
func (c *SecureChannel) Seal(ctx context.Context, plaintext, ad []byte) ([]byte, error) {
	var sealed []byte
	err := c.instr.WrapSeal(ctx, len(plaintext), func() error {
		var err error
		sealed, err = c.aead.Seal(plaintext, ad)
		return err
	})
	return sealed, err
}

// Open decrypts a sealed message. Any change to the message or to ad fails
// with ErrAuthenticationFailed.
func (c *SecureChannel) Open(ctx context.Context, sealed, ad []byte) ([]byte, error) {
	var plaintext []byte
	err := c.instr.WrapOpen(ctx, func() (int, error) {
		var err error
		plaintext, err = c.aead.Open(sealed, ad)
		return len(plaintext), err
	})
	return plaintext, err
}

// Suite returns the cipher suite.
func (c *SecureChannel) Suite() constants.CipherSuite {
	return c.aead.Suite()
}
