package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	"github.com/sara-star-quant/hybrid-qkd/internal/store"
	"github.com/sara-star-quant/hybrid-qkd/pkg/auth"
	"github.com/sara-star-quant/hybrid-qkd/pkg/bb84"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/hybrid"
	"github.com/sara-star-quant/hybrid-qkd/pkg/kem"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// handshakeFlags configure the KEM, the BB84 link and the policy.
type handshakeFlags struct {
	link linkFlags

	kem              string
	allowInsecureKEM bool
	requireRealKEM   bool
	fallback         bool
	qberMax          float64
	noTranscript     bool
	sign             string
	outLen           int
	cipher           string
	jsonOut          bool
	db               string
}

func (f *handshakeFlags) register(fs *flag.FlagSet, n int, distanceKM float64) {
	f.link.register(fs, n, distanceKM)
	fs.StringVar(&f.kem, "kem", kem.Default, "KEM: "+strings.Join(kem.Names(), ", ")+" or SIMULATED")
	fs.BoolVar(&f.allowInsecureKEM, "allow-insecure-kem", false, "Fall back to the insecure simulated KEM")
	fs.BoolVar(&f.requireRealKEM, "require-real-kem", false, "Reject the simulated KEM even when allowed")
	fs.BoolVar(&f.fallback, "fallback", constants.DefaultFallbackToKEMOnly, "Continue with KEM-only keys when QKD fails")
	fs.Float64Var(&f.qberMax, "qber-max", constants.DefaultQBERMax, "Abort when the estimated QBER exceeds this")
	fs.BoolVar(&f.noTranscript, "no-transcript", false, "Do not bind the transcript hash into the key derivation")
	fs.StringVar(&f.sign, "sign", "", "Sign the transcript: "+auth.SchemeMLDSA65+" or "+auth.SchemeEd25519)
	fs.IntVar(&f.outLen, "key-bytes", constants.SessionKeySize, "Session key length in bytes")
	fs.StringVar(&f.cipher, "cipher", "aes-gcm", "Cipher suite: aes-gcm or chacha20")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the handshake info as JSON")
	fs.StringVar(&f.db, "db", "", "Record the handshake in this SQLite database")
}

func (f *handshakeFlags) config() (hybrid.Config, error) {
	qkd, err := f.link.config()
	if err != nil {
		return hybrid.Config{}, err
	}
	cfg := hybrid.DefaultConfig()
	cfg.KEM = f.kem
	cfg.AllowInsecureKEM = f.allowInsecureKEM
	cfg.QKD = qkd
	cfg.Policy.QBERMax = f.qberMax
	cfg.Policy.FallbackToKEMOnly = f.fallback
	cfg.Policy.RequireRealKEM = f.requireRealKEM
	cfg.BindTranscript = !f.noTranscript
	cfg.OutLen = f.outLen
	return cfg, nil
}

func (f *handshakeFlags) suite() (constants.CipherSuite, error) {
	suite := constants.ParseCipherSuite(f.cipher)
	if !suite.IsSupported() {
		return 0, fmt.Errorf("invalid cipher: %s (use aes-gcm or chacha20)", f.cipher)
	}
	return suite, nil
}

// perform runs one handshake, records it and prints the summary.
func (f *handshakeFlags) perform(ctx context.Context, obs *observability, stdout io.Writer) (*crypto.SessionKeys, *hybrid.Info, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, nil, err
	}

	opts := []hybrid.Option{
		hybrid.WithLogger(obs.logger),
		hybrid.WithTracer(obs.tracer),
		hybrid.WithCollector(obs.collector),
	}
	if f.link.seed != 0 {
		opts = append(opts, hybrid.WithRand(crypto.NewSeededRand(f.link.seed)))
	}
	if f.sign != "" {
		signer, err := auth.NewSigner(f.sign)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, hybrid.WithSigner(signer))
	}

	h, err := hybrid.NewHandshaker(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	keys, info, err := h.Perform(ctx)

	if f.db != "" {
		if dbErr := saveHandshake(ctx, f.db, info, err); dbErr != nil {
			obs.logger.Error("could not record handshake", metrics.Fields{"error": dbErr.Error()})
		}
	}

	if f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(info); encErr != nil && err == nil {
			err = encErr
		}
	} else {
		printInfo(stdout, info, err)
	}

	if err != nil {
		keys.Zeroize()
		return nil, info, err
	}
	return keys, info, nil
}

func saveHandshake(ctx context.Context, path string, info *hybrid.Info, herr error) error {
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck
	return s.SaveHandshake(ctx, store.NewHandshakeRecord(info, herr))
}

func printInfo(w io.Writer, info *hybrid.Info, err error) {
	if err != nil {
		fmt.Fprintln(w, "Handshake aborted")
	} else {
		fmt.Fprintln(w, "Handshake complete")
	}
	if info.Insecure() {
		fmt.Fprintln(w, "  WARNING: the simulated KEM provides no security")
	}

	states := make([]string, len(info.States))
	for i, s := range info.States {
		states[i] = s.String()
	}

	m := info.QKD
	fmt.Fprintf(w, "  session:     %s\n", info.SessionID)
	fmt.Fprintf(w, "  kem:         %s (%s)\n", info.KEM, info.SecurityLevel)
	fmt.Fprintf(w, "  link:        %.1f km, p_reach %.6f\n", m.DistanceKM, m.ProbReach)
	fmt.Fprintf(w, "  sifted:      %d bits (sample %d)\n", m.SiftLen, m.SampleSize)
	fmt.Fprintf(w, "  qber:        %.4f\n", m.QBER)
	fmt.Fprintf(w, "  leakage:     %d bits, %d residual errors\n", m.LeakageBits, m.ResidualErrors)
	if info.QKDUsed {
		fmt.Fprintln(w, "  qkd:         used")
	} else {
		fmt.Fprintln(w, "  qkd:         not used (KEM-only keys)")
	}
	if len(info.TranscriptHash) > 0 {
		fmt.Fprintf(w, "  transcript:  %s\n", hex.EncodeToString(info.TranscriptHash))
	}
	if info.SignatureScheme != "" {
		fmt.Fprintf(w, "  signature:   %s, %d bytes\n", info.SignatureScheme, len(info.Signature))
	}
	fmt.Fprintf(w, "  states:      %s\n", strings.Join(states, " > "))
	fmt.Fprintf(w, "  duration:    %s\n", info.Duration)
}

func handshakeCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("handshake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var hf handshakeFlags
	var of obsFlags
	hf.register(fs, bb84.DefaultConfig().N, constants.DefaultDistanceKM)
	of.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	obs, err := of.setup(stderr)
	if err != nil {
		return err
	}
	keys, _, err := hf.perform(ctx, obs, stdout)
	keys.Zeroize()
	if finErr := of.finish(obs, stdout); err == nil {
		err = finErr
	}
	return err
}

func chatCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var hf handshakeFlags
	var of obsFlags
	hf.register(fs, 200, 5)
	of.register(fs)
	message := fs.String("message", "Hello Bob, this is a hybrid-secure message!", "Message Alice sends to Bob")
	if err := fs.Parse(args); err != nil {
		return err
	}
	suite, err := hf.suite()
	if err != nil {
		return err
	}

	obs, err := of.setup(stderr)
	if err != nil {
		return err
	}
	keys, _, err := hf.perform(ctx, obs, stdout)
	if err != nil {
		return err
	}
	defer keys.Zeroize()

	ch, err := hybrid.NewSecureChannel(suite, keys.ClientKey, obs.collector, obs.tracer)
	if err != nil {
		return err
	}
	ad := []byte(constants.ChatAssociatedData)

	sealed, err := ch.Seal(ctx, []byte(*message), ad)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Alice sent:   %s... (%d bytes, %s)\n", hex.EncodeToString(sealed[:min(24, len(sealed))]), len(sealed), suite)

	plaintext, err := ch.Open(ctx, sealed, ad)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Bob received: %s\n", plaintext)

	return of.finish(obs, stdout)
}

func transferCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var hf handshakeFlags
	var of obsFlags
	hf.register(fs, 300, 2)
	of.register(fs)
	in := fs.String("in", "", "File to send (required)")
	outEnc := fs.String("out-enc", "", "Where to write nonce||ciphertext (required)")
	outDec := fs.String("out-dec", "", "Where to write the decrypted copy (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *outEnc == "" || *outDec == "" {
		return fmt.Errorf("--in, --out-enc and --out-dec are required")
	}
	suite, err := hf.suite()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}

	obs, err := of.setup(stderr)
	if err != nil {
		return err
	}
	keys, _, err := hf.perform(ctx, obs, stdout)
	if err != nil {
		return err
	}
	defer keys.Zeroize()

	ch, err := hybrid.NewSecureChannel(suite, keys.ClientKey, obs.collector, obs.tracer)
	if err != nil {
		return err
	}
	ad := []byte(constants.TransferAssociatedData)

	sealed, err := ch.Seal(ctx, data, ad)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outEnc, sealed, 0o600); err != nil {
		return err
	}

	blob, err := os.ReadFile(*outEnc)
	if err != nil {
		return err
	}
	plaintext, err := ch.Open(ctx, blob, ad)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outDec, plaintext, 0o600); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Transferred %d bytes (%d encrypted) and decrypted successfully.\n", len(data), len(blob))
	return of.finish(obs, stdout)
}
