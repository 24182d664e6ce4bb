// Package errors defines the error taxonomy of the hybrid key establishment
// pipeline. Messages identify the failing stage and never carry key material.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for channel configuration
var (
	// ErrChannelConfig indicates channel or detector parameters are out of range
	ErrChannelConfig = errors.New("channel: invalid parameters")
)

// Sentinel errors for key distillation
var (
	// ErrKeyDistillation indicates the QKD pipeline produced no usable key
	ErrKeyDistillation = errors.New("qkd: key distillation failed")

	// ErrNoSiftedBits indicates no slot survived sifting
	ErrNoSiftedBits = errors.New("qkd: no sifted bits")

	// ErrQBERExceeded indicates the estimated QBER is above the configured threshold
	ErrQBERExceeded = errors.New("qkd: qber exceeds threshold")

	// ErrInvalidReconcileInput indicates mismatched sequences or bad block parameters
	ErrInvalidReconcileInput = errors.New("reconcile: invalid input")
)

// Sentinel errors for key encapsulation
var (
	// ErrKEMFailure is matched by every KEMError
	ErrKEMFailure = errors.New("kem: operation failed")

	// ErrUnsupportedKEM indicates the requested KEM is unknown or unavailable
	ErrUnsupportedKEM = errors.New("kem: unsupported scheme")

	// ErrInsecureKEM indicates policy rejected a simulated KEM
	ErrInsecureKEM = errors.New("kem: insecure simulated scheme rejected")

	// ErrSecretMismatch indicates encapsulated and decapsulated secrets differ
	ErrSecretMismatch = errors.New("kem: shared secret mismatch")

	// ErrInvalidPublicKey indicates that a public key is malformed
	ErrInvalidPublicKey = errors.New("kem: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is malformed
	ErrInvalidPrivateKey = errors.New("kem: invalid private key")

	// ErrInvalidCiphertext indicates that a KEM ciphertext is malformed
	ErrInvalidCiphertext = errors.New("kem: invalid ciphertext")

	// ErrInvalidKeySize indicates that a key or requested output has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD authentication/decryption failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrCiphertextTooShort indicates ciphertext is too short to be valid
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")

	// ErrUnsupportedCipherSuite indicates an unsupported cipher suite
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")
)

// Sentinel errors for transcript signatures
var (
	ErrUnsupportedSignature = errors.New("auth: unsupported signature scheme")
	ErrSignatureInvalid     = errors.New("auth: signature verification failed")
)

// Sentinel errors for handshake orchestration
var (
	// ErrHandshakeFailed is matched by every HandshakeError
	ErrHandshakeFailed = errors.New("handshake: failed")

	// ErrInvalidState indicates an operation in the wrong orchestrator state
	ErrInvalidState = errors.New("handshake: invalid state")
)

// Sentinel errors for persistence
var (
	ErrNotFound = errors.New("store: record not found")
)

// ChannelConfigError reports a single out-of-range channel parameter.
type ChannelConfigError struct {
	Field string
	Value float64
}

func (e *ChannelConfigError) Error() string {
	return fmt.Sprintf("channel: invalid %s: %v", e.Field, e.Value)
}

// Is matches ErrChannelConfig.
func (e *ChannelConfigError) Is(target error) bool {
	return target == ErrChannelConfig
}

// DistillationReason identifies why key distillation stopped.
type DistillationReason int

const (
	ReasonNoSiftedBits DistillationReason = iota + 1
	ReasonQBERExceeded
)

// String returns the reason name.
func (r DistillationReason) String() string {
	switch r {
	case ReasonNoSiftedBits:
		return "NoSiftedBits"
	case ReasonQBERExceeded:
		return "QberExceeded"
	default:
		return "Unknown"
	}
}

// KeyDistillationError reports an aborted QKD run. QBER and Threshold are
// set only for ReasonQBERExceeded.
type KeyDistillationError struct {
	Reason    DistillationReason
	QBER      float64
	Threshold float64
}

// NewNoSiftedBitsError returns the abort raised when sifting leaves nothing.
func NewNoSiftedBitsError() *KeyDistillationError {
	return &KeyDistillationError{Reason: ReasonNoSiftedBits}
}

// NewQBERExceededError returns the abort raised by the QBER policy.
func NewQBERExceededError(qber, threshold float64) *KeyDistillationError {
	return &KeyDistillationError{Reason: ReasonQBERExceeded, QBER: qber, Threshold: threshold}
}

func (e *KeyDistillationError) Error() string {
	if e.Reason == ReasonQBERExceeded {
		return fmt.Sprintf("qkd: key distillation failed (%s): qber %.4f > %.4f", e.Reason, e.QBER, e.Threshold)
	}
	return fmt.Sprintf("qkd: key distillation failed (%s)", e.Reason)
}

// Is matches ErrKeyDistillation.
func (e *KeyDistillationError) Is(target error) bool {
	return target == ErrKeyDistillation
}

// Unwrap returns the reason sentinel.
func (e *KeyDistillationError) Unwrap() error {
	switch e.Reason {
	case ReasonNoSiftedBits:
		return ErrNoSiftedBits
	case ReasonQBERExceeded:
		return ErrQBERExceeded
	default:
		return nil
	}
}

// KEMError wraps a failure from the key encapsulation collaborator.
type KEMError struct {
	Op  string // Operation that failed, e.g. "ML-KEM-1024.Encapsulate"
	Err error
}

func (e *KEMError) Error() string {
	return fmt.Sprintf("kem %s: %v", e.Op, e.Err)
}

func (e *KEMError) Unwrap() error {
	return e.Err
}

// Is matches ErrKEMFailure.
func (e *KEMError) Is(target error) bool {
	return target == ErrKEMFailure
}

// NewKEMError creates a new KEMError
func NewKEMError(op string, err error) *KEMError {
	return &KEMError{Op: op, Err: err}
}

// HandshakeError wraps the failure that aborted the orchestrator.
type HandshakeError struct {
	State string // Orchestrator state that failed
	Err   error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.State, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Is matches ErrHandshakeFailed.
func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshakeFailed
}

// NewHandshakeError creates a new HandshakeError
func NewHandshakeError(state string, err error) *HandshakeError {
	return &HandshakeError{State: state, Err: err}
}

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
