// Package hybridqkd establishes session keys by combining a post-quantum
// KEM with a simulated BB84 quantum key distribution run.
//
// A handshake encapsulates a shared secret with ML-KEM (or the X25519 +
// ML-KEM-1024 cascade CH-KEM), runs BB84 over a modelled fibre link, checks
// the estimated QBER against policy and derives two directional keys from
// both secrets with HKDF-SHA256. The transcript hash of the exchange salts
// the derivation and can be signed with ML-DSA-65 or Ed25519.
//
// # Quick Start
//
//	import "github.com/sara-star-quant/hybrid-qkd/pkg/hybrid"
//
//	cfg := hybrid.DefaultConfig()
//	cfg.QKD.Channel.DistanceKM = 5
//
//	keys, info, err := hybrid.PerformHandshake(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("handshake aborted in %s: %v", info.States[len(info.States)-1], err)
//	}
//	defer keys.Zeroize()
//
//	ch, _ := hybrid.NewSecureChannel(constants.CipherSuiteAES256GCM, keys.ClientKey, nil, nil)
//	sealed, _ := ch.Seal(ctx, []byte("hello"), []byte("chat"))
//
// # Package Structure
//
//   - pkg/hybrid: Handshake state machine, policy and secure channel
//   - pkg/bb84: BB84 engine (generate, measure, sift, sample) and Run
//   - pkg/channel: Fibre loss and detector model
//   - pkg/reconcile: Block-parity error correction
//   - pkg/amplify: Privacy amplification
//   - pkg/kem: ML-KEM-768, ML-KEM-1024, CH-KEM and the simulated KEM
//   - pkg/auth: Transcript signatures
//   - pkg/crypto: HKDF, AEAD, X25519, ML-KEM primitives and RNG helpers
//   - pkg/sweep: Parallel distance sweeps with aggregate statistics
//   - pkg/metrics: Counters, Prometheus export, tracing and logging
//   - internal/store: SQLite persistence of handshakes and sweeps
//   - internal/constants: Protocol parameters
//   - internal/errors: Error types
//
// # Security Notes
//
// BB84 is simulated: there is no quantum hardware, and the QKD contribution
// protects nothing a real eavesdropper could not read from process memory.
// The SIMULATED KEM has no security at all and is only chosen when a caller
// allows insecure schemes; sessions keyed with it are flagged in Info.
//
// # Command Line
//
// cmd/hybrid-qkd wraps the library:
//
//	hybrid-qkd handshake --distance 1 --sign ML-DSA-65
//	hybrid-qkd sweep --distances 1,5,10,20 --repeats 5 --seed 42
package hybridqkd
