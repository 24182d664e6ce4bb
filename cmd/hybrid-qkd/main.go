package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	pkgversion "github.com/sara-star-quant/hybrid-qkd/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "handshake":
		err = handshakeCommand(ctx, args[1:], stdout, stderr)
	case "chat":
		err = chatCommand(ctx, args[1:], stdout, stderr)
	case "transfer":
		err = transferCommand(ctx, args[1:], stdout, stderr)
	case "bb84":
		err = bb84Command(ctx, args[1:], stdout, stderr)
	case "sweep":
		err = sweepCommand(ctx, args[1:], stdout, stderr)
	case "version":
		versionCommand(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func versionCommand(w io.Writer) {
	b := pkgversion.Build()
	fmt.Fprintf(w, "hybrid-qkd version %s\n", getVersion())
	fmt.Fprintf(w, "Go: %s %s\n", b.GoVersion, b.Platform)
	switch {
	case gitCommit != "unknown":
		fmt.Fprintf(w, "Commit: %s\n", gitCommit)
	case b.Revision != "":
		fmt.Fprintf(w, "Commit: %s\n", b.Revision)
	}
	if buildTime != "unknown" {
		fmt.Fprintf(w, "Built: %s\n", buildTime)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `hybrid-qkd - Hybrid KEM + simulated BB84 key establishment

USAGE:
    hybrid-qkd <command> [options]

COMMANDS:
    handshake   Run one hybrid handshake and print its metrics
    chat        Handshake, then send one encrypted chat message
    transfer    Handshake, then encrypt and decrypt a file
    bb84        Run the BB84 distillation pipeline alone
    sweep       Run BB84 across fibre lengths and summarize
    version     Print version information
    help        Show this help message

Run 'hybrid-qkd <command> --help' for more information on a command.

EXAMPLES:
    # Handshake over 1 km of fibre with a signed transcript
    hybrid-qkd handshake --distance 1 --sign ML-DSA-65

    # Allow KEM-only sessions when QKD fails
    hybrid-qkd handshake --distance 80 --fallback

    # Encrypt a file with a fresh session key
    hybrid-qkd transfer --in notes.txt --out-enc notes.enc --out-dec notes.out

    # Reproducible distance sweep stored in SQLite
    hybrid-qkd sweep --distances 1,5,10,20 --repeats 5 --seed 42 --db sweep.db

NOTE:
    BB84 runs in simulation only. The SIMULATED KEM offers no security and
    is only used with --allow-insecure-kem.`)
}
