// Package hybrid orchestrates a hybrid key establishment: a KEM exchange and
// a simulated BB84 run whose secrets are merged into session keys.
//
// Handshake states:
//
//	KEM_KEYGEN -> KEM_ENCAP -> KEM_DECAP_VERIFY -> RUN_QKD -> CHECK_QKD -> COMBINE -> DONE
//	     \____________\______________\_______________\___________\__________\-> ABORTED
//
// Both parties run in-process, so decapsulation is checked against the
// encapsulated secret directly. CHECK_QKD applies the Policy: a run with no
// sifted bits or a QBER above Policy.QBERMax aborts the handshake, unless
// Policy.FallbackToKEMOnly lets the session continue on the KEM secret alone.
//
// COMBINE derives the session keys:
//
//	transcript = SHA3-256(label, kem name, pk, ct, qkd summary)
//	keys       = HKDF-SHA256(salt = transcript, ss_kem || ss_qkd, "hybrid session keys")
//
// No key material is returned from a failed handshake and intermediate
// secrets are erased before Perform returns.
package hybrid

import (
	"time"

	"github.com/google/uuid"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	"github.com/sara-star-quant/hybrid-qkd/pkg/bb84"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/kem"
)

// State is a handshake orchestrator state.
type State int

const (
	StateKEMKeygen State = iota
	StateKEMEncap
	StateKEMDecapVerify
	StateRunQKD
	StateCheckQKD
	StateCombine
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateKEMKeygen:      "KEM_KEYGEN",
	StateKEMEncap:       "KEM_ENCAP",
	StateKEMDecapVerify: "KEM_DECAP_VERIFY",
	StateRunQKD:         "RUN_QKD",
	StateCheckQKD:       "CHECK_QKD",
	StateCombine:        "COMBINE",
	StateDone:           "DONE",
	StateAborted:        "ABORTED",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Policy controls how the orchestrator reacts to a weak or failed QKD run.
type Policy struct {
	// QBERMax aborts the handshake when the estimated QBER exceeds it.
	QBERMax float64

	// FallbackToKEMOnly continues with the KEM secret alone when QKD fails.
	FallbackToKEMOnly bool

	// RequireRealKEM rejects the simulated KEM.
	RequireRealKEM bool

	// RekeyInterval is how long session keys may be used.
	RekeyInterval time.Duration
}

// DefaultPolicy returns strict failure at 10% QBER with hourly rekeying.
func DefaultPolicy() Policy {
	return Policy{
		QBERMax:           constants.DefaultQBERMax,
		FallbackToKEMOnly: constants.DefaultFallbackToKEMOnly,
		RekeyInterval:     constants.RekeyIntervalSeconds * time.Second,
	}
}

// Config configures a handshake.
type Config struct {
	// KEM names the scheme passed to kem.Negotiate. Empty selects kem.Default.
	KEM string

	// AllowInsecureKEM permits falling back to the simulated KEM.
	AllowInsecureKEM bool

	// QKD configures the BB84 run. Zero fields take bb84 defaults.
	QKD bb84.Config

	Policy Policy

	// BindTranscript salts the key derivation with the transcript hash.
	BindTranscript bool

	// OutLen is the length of each session key in bytes.
	OutLen int
}

// DefaultConfig returns ML-KEM-768 with the default BB84 run and policy.
func DefaultConfig() Config {
	return Config{
		KEM:            kem.Default,
		QKD:            bb84.DefaultConfig(),
		Policy:         DefaultPolicy(),
		BindTranscript: true,
		OutLen:         constants.SessionKeySize,
	}
}

func (c Config) withDefaults() Config {
	if c.Policy.QBERMax == 0 {
		c.Policy.QBERMax = constants.DefaultQBERMax
	}
	if c.Policy.RekeyInterval == 0 {
		c.Policy.RekeyInterval = constants.RekeyIntervalSeconds * time.Second
	}
	if c.QKD.N == 0 {
		c.QKD.N = constants.DefaultPhotons
	}
	if c.QKD.Channel == (channel.Parameters{}) {
		c.QKD.Channel = bb84.DefaultConfig().Channel
	}
	c.QKD.Channel = c.QKD.Channel.WithDefaults()
	if c.OutLen == 0 {
		c.OutLen = constants.SessionKeySize
	}
	return c
}

// Info describes a handshake. It carries public values and metrics only.
type Info struct {
	SessionID     uuid.UUID         `json:"session_id"`
	KEM           string            `json:"kem"`
	SecurityLevel kem.SecurityLevel `json:"-"`
	Security      string            `json:"security_level"`

	KEMPublicKey  []byte `json:"-"`
	KEMCiphertext []byte `json:"-"`

	TranscriptHash []byte `json:"transcript_hash,omitempty"`

	QKD     bb84.Metrics `json:"qkd_metrics"`
	QKDUsed bool         `json:"qkd_used"`

	// States lists every state entered, ending in DONE or ABORTED.
	States []State `json:"states"`

	SignatureScheme string `json:"signature_scheme,omitempty"`
	SignerPublicKey []byte `json:"-"`
	Signature       []byte `json:"-"`

	EstablishedAt time.Time     `json:"established_at"`
	RekeyInterval time.Duration `json:"-"`
	Duration      time.Duration `json:"duration"`
}

// Insecure reports whether the session was keyed with the simulated KEM.
func (i *Info) Insecure() bool {
	return i.SecurityLevel == kem.SecurityLevelSimulatedInsecure
}

// Established reports whether the handshake reached DONE.
func (i *Info) Established() bool {
	return len(i.States) > 0 && i.States[len(i.States)-1] == StateDone
}

// RekeyDue reports whether the session keys have outlived the rekey interval.
func (i *Info) RekeyDue(now time.Time) bool {
	if !i.Established() || i.RekeyInterval <= 0 {
		return false
	}
	return now.Sub(i.EstablishedAt) >= i.RekeyInterval
}
