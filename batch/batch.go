// Package batch deserializes many NSKeyedArchiver files concurrently.
//
// Every file gets its own record table and recursion guard; nothing mutable
// is shared between jobs. A failing file is reported in its Result and does
// not stop the others.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/Neumenon/nska/nska"
)

// Config configures a batch run.
type Config struct {
	Workers int    // concurrent files; <= 0 means GOMAXPROCS
	Suffix  string // appended to the input path before the output extension

	JSON    bool
	Plist   bool
	Msgpack bool
	Gzip    bool // gzip the JSON output (.json.gz)
	Indent  bool // indent the JSON output

	Options nska.Options
	Logger  *slog.Logger
}

// DefaultConfig returns a config that writes JSON and binary plist next to
// each input.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.GOMAXPROCS(0),
		Suffix:  "_deserialized",
		JSON:    true,
		Plist:   true,
		Options: nska.DefaultOptions(),
	}
}

// Result describes one processed file.
type Result struct {
	Path    string
	SHA256  string   // hex digest of the input bytes
	Outputs []string // files written
	Err     error
}

// Run processes paths and returns one Result per path, in input order. The
// returned error is non-nil only when ctx is cancelled before all files are
// scheduled.
func Run(ctx context.Context, paths []string, cfg Config) ([]Result, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Path: path, Err: err}
				return nil
			}
			results[i] = processFile(path, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Path == "" {
				results[i] = Result{Path: paths[i], Err: err}
			}
		}
		return results, err
	}
	return results, nil
}

func processFile(path string, cfg Config) Result {
	res := Result{Path: path}
	log := cfg.Logger.With("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		log.Error("read failed", "err", err)
		return res
	}
	sum := sha256.Sum256(data)
	res.SHA256 = hex.EncodeToString(sum[:])

	v, err := nska.Deserialize(data, cfg.Options)
	if err != nil {
		res.Err = err
		log.Error("deserialize failed", "err", err)
		return res
	}

	base := path + cfg.Suffix
	if cfg.JSON {
		out := base + ".json"
		if cfg.Gzip {
			out += ".gz"
			err = writeGzipJSON(v, out, cfg.Indent)
		} else {
			err = writeJSON(v, out, cfg.Indent)
		}
		if res.record(out, err) {
			log.Error("write json failed", "err", err)
			return res
		}
	}
	if cfg.Plist {
		out := base + ".plist"
		if res.record(out, nska.WritePlist(v, out)) {
			log.Error("write plist failed", "err", res.Err)
			return res
		}
	}
	if cfg.Msgpack {
		out := base + ".msgpack"
		if res.record(out, nska.WriteMsgpack(v, out)) {
			log.Error("write msgpack failed", "err", res.Err)
			return res
		}
	}
	log.Info("deserialized", "sha256", res.SHA256, "outputs", len(res.Outputs))
	return res
}

// record notes a written output, or the error that prevented it. It reports
// whether processing should stop.
func (r *Result) record(out string, err error) bool {
	if err != nil {
		r.Err = fmt.Errorf("%s: %w", out, err)
		return true
	}
	r.Outputs = append(r.Outputs, out)
	return false
}

func writeJSON(v *nska.Value, path string, indent bool) error {
	if !indent {
		return nska.WriteJSON(v, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nska.EncodeJSON(f, v, true); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeGzipJSON(v *nska.Value, path string, indent bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if err := nska.EncodeJSON(zw, v, indent); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
