// nska - NSKeyedArchiver deserializer CLI tool
//
// Usage:
//
//	nska deserialize [options] [file]     Deserialize one archive
//	nska batch [options] files...         Deserialize many archives in parallel
//	nska version                          Print version info
//
// deserialize writes <file>_deserialized.json and <file>_deserialized.plist
// next to the input. With no file (or "-") it reads stdin and prints JSON
// to stdout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/Neumenon/nska/batch"
	"github.com/Neumenon/nska/nska"
)

const libVersion = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	cfg, files, err := parseArgs(cmd, os.Args[2:])
	if err != nil {
		fatal("%v", err)
	}

	switch cmd {
	case "deserialize", "de":
		if len(files) == 0 || files[0] == "-" {
			cmdStdin(cfg)
			return
		}
		os.Exit(cmdBatch(files, cfg))
	case "batch":
		if len(files) == 0 {
			fatal("batch: no input files")
		}
		os.Exit(cmdBatch(files, cfg))
	case "version", "-v", "--version":
		fmt.Printf("nska %s (deserializer %s)\n", libVersion, nska.Version())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `nska - NSKeyedArchiver deserializer

Usage:
  nska deserialize [options] [file]     Deserialize one archive
  nska batch [options] files...         Deserialize many archives in parallel
  nska version                          Print version info

Options:
  --json-only         Only write <file>_deserialized.json
  --plist-only        Only write <file>_deserialized.plist
  --msgpack           Also write <file>_deserialized.msgpack
  --gzip              Gzip the JSON output (.json.gz)
  --indent            Indent the JSON output
  --workers=N         Files processed in parallel (batch, default: GOMAXPROCS)
  --max-depth=N       Maximum nesting depth (default: 1024, 0 = unlimited)
  --max-nodes=N       Maximum values per root (default: 16777216, 0 = unlimited)

If no file is given to deserialize, reads stdin and prints JSON to stdout.

Examples:
  nska deserialize Sessions.plist
  nska batch --json-only --workers=8 */*.plist
  cat archive.plist | nska deserialize --indent
`)
}

// cmdStdin: archive on stdin -> JSON on stdout
func cmdStdin(cfg batch.Config) {
	v, err := nska.DeserializeReader(os.Stdin, cfg.Options)
	if err != nil {
		fatal("deserialize: %v", err)
	}
	if err := nska.EncodeJSON(os.Stdout, v, cfg.Indent); err != nil {
		fatal("write: %v", err)
	}
}

// cmdBatch returns the process exit code: 0 if every file succeeded.
func cmdBatch(files []string, cfg batch.Config) int {
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := batch.Run(ctx, files, cfg)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", r.Path, r.Err)
			continue
		}
		for _, out := range r.Outputs {
			fmt.Println(out)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nska: %v\n", err)
		return 130
	}
	if failed > 0 {
		return 2
	}
	return 0
}

// parseArgs applies the option flags to a default config and collects the
// file arguments.
func parseArgs(cmd string, args []string) (batch.Config, []string, error) {
	cfg := batch.DefaultConfig()
	var files []string
	for _, arg := range args {
		var err error
		switch {
		case arg == "--json-only":
			cfg.Plist = false
		case arg == "--plist-only":
			cfg.JSON = false
		case arg == "--msgpack":
			cfg.Msgpack = true
		case arg == "--gzip":
			cfg.Gzip = true
		case arg == "--indent":
			cfg.Indent = true
		case strings.HasPrefix(arg, "--workers="):
			cfg.Workers, err = parseIntArg(arg, "--workers=")
		case strings.HasPrefix(arg, "--max-depth="):
			cfg.Options.MaxDepth, err = parseIntArg(arg, "--max-depth=")
		case strings.HasPrefix(arg, "--max-nodes="):
			cfg.Options.MaxNodes, err = parseIntArg(arg, "--max-nodes=")
		case arg == "-" || !strings.HasPrefix(arg, "-"):
			files = append(files, arg)
		default:
			err = fmt.Errorf("unknown option %s", arg)
		}
		if err != nil {
			return cfg, nil, err
		}
	}
	if (cmd == "deserialize" || cmd == "de") && len(files) > 1 {
		return cfg, nil, fmt.Errorf("deserialize takes one file, got %d (use batch for several)", len(files))
	}
	return cfg, files, nil
}

func parseIntArg(arg, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(arg, prefix))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad %s", arg)
	}
	return n, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "nska: "+format+"\n", args...)
	os.Exit(1)
}
