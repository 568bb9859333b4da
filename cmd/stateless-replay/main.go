// Command stateless-replay verifies a single block's state transition from a
// transferable Parcel witness and a pre-computed state delta, without access
// to a full archive node: it loads the witness's deduplicated trie nodes,
// replays the delta through the multiproof engine, and reports whether the
// resulting root matches the one the caller expects.
//
// Usage:
//
//	stateless-replay --parcel witness.rlp --delta delta.rlp --pre-root 0x... --expected-root 0x...
//
// Flags:
//
//	--parcel         Path to a snappy-compressed RLP Parcel witness
//	--delta          Path to an RLP-encoded applier.DeltaWire
//	--pre-root       Pre-state account trie root (hex)
//	--expected-root  Post-state account trie root to verify against (optional)
//	--verbosity      Log level 0-5 (default: 3)
//	--metrics        Print a metrics snapshot after replay (default: false)
//	--version        Print version and exit
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/eth2030/multiproof-engine/applier"
	"github.com/eth2030/multiproof-engine/core/types"
	elog "github.com/eth2030/multiproof-engine/log"
	"github.com/eth2030/multiproof-engine/metrics"
	"github.com/eth2030/multiproof-engine/parcel"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	elog.SetDefault(elog.New(verbosityToLevel(cfg.Verbosity)))
	log := elog.Default().Module("replay")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	root, err := replay(cfg, log)
	if err != nil {
		log.Error("replay failed", "error", err)
		return 1
	}

	fmt.Printf("post-state root: %s\n", root.Hex())

	if cfg.Metrics {
		snap := metrics.DefaultRegistry.Snapshot()
		for k, v := range snap {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}

	return 0
}

// replay loads the witness and delta named by cfg and applies the delta,
// returning the resulting account-trie root.
func replay(cfg Config, log *elog.Logger) (types.Hash, error) {
	compressed, err := os.ReadFile(cfg.ParcelPath)
	if err != nil {
		return types.Hash{}, fmt.Errorf("reading parcel: %w", err)
	}
	p, err := parcel.Decode(compressed)
	if err != nil {
		return types.Hash{}, fmt.Errorf("decoding parcel: %w", err)
	}
	proofs, err := parcel.Expand(p)
	if err != nil {
		return types.Hash{}, fmt.Errorf("expanding parcel: %w", err)
	}
	log.Info("loaded witness", "accounts", len(proofs), "contracts", len(p.Contracts))

	rawDelta, err := os.ReadFile(cfg.DeltaPath)
	if err != nil {
		return types.Hash{}, fmt.Errorf("reading delta: %w", err)
	}
	delta, err := applier.DecodeDelta(rawDelta)
	if err != nil {
		return types.Hash{}, fmt.Errorf("decoding delta: %w", err)
	}

	preRoot := types.HexToHash(cfg.PreRoot)
	trie := applier.NewMultiTrie(preRoot, nil)
	for _, proof := range proofs {
		if err := trie.Account.InsertProof(proof.AccountProof); err != nil {
			return types.Hash{}, fmt.Errorf("account proof for %s: %w", proof.Address.Hex(), err)
		}
		if len(proof.Storage) == 0 {
			continue
		}
		trie.AddStorageTrie(proof.Address, proof.StorageHash)
		store := trie.Storage[proof.Address]
		for _, sp := range proof.Storage {
			if err := store.InsertProof(sp.Proof); err != nil {
				return types.Hash{}, fmt.Errorf("storage proof for %s slot %s: %w", proof.Address.Hex(), sp.Key.Hex(), err)
			}
		}
	}

	var expected types.Hash
	if cfg.ExpectedRoot != "" {
		expected = types.HexToHash(cfg.ExpectedRoot)
	}
	return trie.Apply(delta, expected)
}

// verbosityToLevel maps a 0-5 verbosity flag to a slog.Level, mirroring
// cmd/eth2030's node.VerbosityToLogLevel but local since this command has no
// node.Config of its own.
func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError + 4 // effectively silent
	case v == 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (Config, bool, int) {
	cfg := DefaultConfig()
	fs := newFlagSet(&cfg)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, true, 2
	}

	if *showVersion {
		fmt.Printf("stateless-replay %s (commit %s)\n", version, commit)
		return cfg, true, 0
	}

	return cfg, false, 0
}

// newFlagSet creates a flagSet that binds all CLI flags to the given Config.
func newFlagSet(cfg *Config) *flagSet {
	fs := newCustomFlagSet("stateless-replay")
	fs.StringVar(&cfg.ParcelPath, "parcel", cfg.ParcelPath, "path to a snappy-compressed RLP Parcel witness")
	fs.StringVar(&cfg.DeltaPath, "delta", cfg.DeltaPath, "path to an RLP-encoded state delta")
	fs.StringVar(&cfg.PreRoot, "pre-root", cfg.PreRoot, "pre-state account trie root (hex)")
	fs.StringVar(&cfg.ExpectedRoot, "expected-root", cfg.ExpectedRoot, "post-state account trie root to verify against")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 4-5=debug)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "print a metrics snapshot after replay")
	return fs
}
