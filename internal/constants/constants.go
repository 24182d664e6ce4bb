// Package constants defines protocol defaults, policy thresholds and
// primitive sizes for the hybrid QKD + KEM key establishment pipeline.
//
// Values in the BB84 group describe the simulated optical link and the
// distillation stages. Values in the policy group are consumed by the
// handshake orchestrator and can be overridden per session.
package constants

// Protocol identification
const (
	// ProtocolName is used for domain separation in transcript hashing
	ProtocolName = "HYBRID-QKD-v1"
)

// BB84 simulation defaults
const (
	// DefaultPhotons is the number of photon slots exchanged per run
	DefaultPhotons = 1000

	// DefaultDistanceKM is the fibre length used when none is given
	DefaultDistanceKM = 10.0

	// DefaultAttenuationDBPerKM is the loss of standard telecom fibre at 1550 nm
	DefaultAttenuationDBPerKM = 0.2

	// DefaultDetectorEfficiency is the probability a photon that reaches the
	// detector produces a click
	DefaultDetectorEfficiency = 0.1

	// DefaultDarkCountRate is the per-slot probability of a noise click
	DefaultDarkCountRate = 1e-5

	// MaxQBERSampleSize caps the number of sifted bits disclosed for QBER estimation
	MaxQBERSampleSize = 50

	// QBERSampleDivisor sets the sample to one tenth of the sifted key
	QBERSampleDivisor = 10
)

// Reconciliation defaults
const (
	// DefaultBlockSize is the parity block length in bits
	DefaultBlockSize = 16

	// DefaultMaxRounds is the number of parity passes, run regardless of convergence
	DefaultMaxRounds = 4
)

// Privacy amplification and key derivation
const (
	// DistilledKeySize is the default QKD key length in bytes
	DistilledKeySize = 32

	// SessionKeySize is the default length of each session key half in bytes
	SessionKeySize = 32

	// HashSize is the SHA-256 output length used by the HKDF extractor
	HashSize = 32

	// MaxExpandSize is the largest HKDF-SHA256 expansion (255 blocks)
	MaxExpandSize = 255 * HashSize

	// TranscriptHashSize is the size of the handshake transcript hash in bytes
	TranscriptHashSize = 32

	// AmplificationSalt is the salt applied to the reconciled BB84 bits
	AmplificationSalt = "bb84-salt"

	// AmplificationLabel is the fixed label byte mixed into every expand block
	AmplificationLabel byte = 0x00

	// SessionKeysInfo is the HKDF info string for hybrid session key expansion
	SessionKeysInfo = "hybrid session keys"

	// DomainSeparatorCHKEM is used in CH-KEM shared secret derivation
	DomainSeparatorCHKEM = "CH-KEM-v1-SharedSecret"

	// DomainSeparatorTranscript prefixes the handshake transcript
	DomainSeparatorTranscript = "HYBRID-QKD-Transcript"
)

// Handshake policy defaults
const (
	// DefaultQBERMax aborts a handshake when the estimated QBER exceeds 10%
	DefaultQBERMax = 0.10

	// DefaultFallbackToKEMOnly keeps strict failure when QKD yields no key
	DefaultFallbackToKEMOnly = false

	// RekeyIntervalSeconds is how long a session key may be used before rekeying
	RekeyIntervalSeconds = 3600
)

// ML-KEM parameters (NIST FIPS 203)
const (
	// MLKEM1024PublicKeySize is the size of an ML-KEM-1024 encapsulation key in bytes
	MLKEM1024PublicKeySize = 1568

	// MLKEM1024PrivateKeySize is the size of an ML-KEM-1024 decapsulation key in bytes
	MLKEM1024PrivateKeySize = 3168

	// MLKEM1024CiphertextSize is the size of an ML-KEM-1024 ciphertext in bytes
	MLKEM1024CiphertextSize = 1568

	// MLKEM768PublicKeySize is the size of an ML-KEM-768 encapsulation key in bytes
	MLKEM768PublicKeySize = 1184

	// MLKEM768CiphertextSize is the size of an ML-KEM-768 ciphertext in bytes
	MLKEM768CiphertextSize = 1088

	// MLKEMSharedSecretSize is the size of the ML-KEM shared secret in bytes
	MLKEMSharedSecretSize = 32
)

// X25519 parameters (RFC 7748)
const (
	X25519PublicKeySize    = 32
	X25519PrivateKeySize   = 32
	X25519SharedSecretSize = 32
)

// CH-KEM combined sizes
const (
	// CHKEMPublicKeySize is X25519 public key || ML-KEM-1024 public key
	CHKEMPublicKeySize = X25519PublicKeySize + MLKEM1024PublicKeySize

	// CHKEMPrivateKeySize is X25519 private || ML-KEM-1024 private || ML-KEM-1024 public
	CHKEMPrivateKeySize = X25519PrivateKeySize + MLKEM1024PrivateKeySize + MLKEM1024PublicKeySize

	// CHKEMCiphertextSize is X25519 ephemeral public key || ML-KEM-1024 ciphertext
	CHKEMCiphertextSize = X25519PublicKeySize + MLKEM1024CiphertextSize

	// CHKEMSharedSecretSize is the size of the final CH-KEM shared secret
	CHKEMSharedSecretSize = 32
)

// Simulated KEM sizes. The simulated KEM offers no security.
const (
	SimulatedPublicKeySize    = 64
	SimulatedSecretKeySize    = 64
	SimulatedCiphertextSize   = 80
	SimulatedSharedSecretSize = 32
)

// Symmetric encryption parameters
const (
	// AESKeySize is the size of AES-256 keys in bytes
	AESKeySize = 32

	// AESNonceSize is the size of an AEAD nonce in bytes (96 bits)
	AESNonceSize = 12

	// AESTagSize is the size of the AEAD authentication tag in bytes
	AESTagSize = 16

	// MinSealedSize is the minimum size of a nonce-prefixed sealed message
	MinSealedSize = AESNonceSize + AESTagSize
)

// Associated data labels used by the demo applications
const (
	ChatAssociatedData     = "chat"
	TransferAssociatedData = "filetransfer"
)

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for symmetric encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for symmetric encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// ParseCipherSuite maps a CLI name to a suite. Unknown names return 0.
func ParseCipherSuite(name string) CipherSuite {
	switch name {
	case "aes-gcm", "aes", "AES-256-GCM":
		return CipherSuiteAES256GCM
	case "chacha20", "chacha", "ChaCha20-Poly1305":
		return CipherSuiteChaCha20Poly1305
	default:
		return 0
	}
}
