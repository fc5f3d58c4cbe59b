package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"

	"github.com/google/pprof/profile"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/txtar"

	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/lower"
)

// fixture is one txtar archive under the -dir directory: a JSON AST plus
// the collection/function it exercises and the ISA text it must
// compile to.
type fixture struct {
	path       string
	program    ast.Program
	collection string
	function   string
	wantISA    string
}

func loadFixture(path string) (*fixture, error) {
	ar, err := txtar.ParseFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing txtar %s", path)
	}
	files := map[string][]byte{}
	for _, f := range ar.Files {
		files[f.Name] = f.Data
	}

	fx := &fixture{path: path}
	programJSON, ok := files["program.json"]
	if !ok {
		return nil, errors.Errorf("%s: missing program.json", path)
	}
	if err := json.Unmarshal(programJSON, &fx.program); err != nil {
		return nil, errors.Wrapf(err, "%s: decoding program.json", path)
	}
	fx.collection = strings.TrimSpace(string(files["collection"]))
	fx.function = strings.TrimSpace(string(files["function"]))
	fx.wantISA = string(files["want.isa"])
	if fx.collection == "" || fx.function == "" {
		return nil, errors.Errorf("%s: missing collection or function file", path)
	}
	return fx, nil
}

// testCommand wires `plc test` around a directory of txtar fixtures,
// running them concurrently through an errgroup-bounded worker pool
// (§5's batch-run pool) and reporting every mismatch rather than
// stopping at the first.
func testCommand() *command {
	c := newCommand("test", "batch-verify a directory of txtar golden fixtures")
	dir := c.Flag.String("dir", "testdata/fixtures", "directory of .txtar golden fixtures")
	jobs := c.Flag.Int("jobs", 4, "maximum concurrent compiles")
	cpuProfile := c.Flag.String("cpuprofile", "", "write a pruned CPU profile of the run to this path")

	c.Run = func(args []string) error {
		entries, err := filepath.Glob(filepath.Join(*dir, "*.txtar"))
		if err != nil {
			return errors.Wrap(err, "plc test: globbing fixtures")
		}
		if len(entries) == 0 {
			log.Info().Str("dir", *dir).Msg("no fixtures found")
			return nil
		}

		var profileFile *os.File
		if *cpuProfile != "" {
			f, err := os.CreateTemp("", "plc-test-cpu-*.pprof")
			if err != nil {
				return errors.Wrap(err, "plc test: creating temp profile")
			}
			profileFile = f
			if err := pprof.StartCPUProfile(f); err != nil {
				return errors.Wrap(err, "plc test: starting cpu profile")
			}
		}

		g, _ := errgroup.WithContext(context.Background())
		g.SetLimit(*jobs)

		failures := make([]string, len(entries))
		for i, path := range entries {
			i, path := i, path
			g.Go(func() error {
				msg := runFixture(path)
				failures[i] = msg
				return nil
			})
		}
		// Compile errors are per-fixture failures, not driver errors, so
		// g.Wait's own error is only ever nil here; every g.Go above
		// returns nil and records its verdict in failures instead.
		_ = g.Wait()

		if profileFile != nil {
			pprof.StopCPUProfile()
			if err := writePrunedProfile(profileFile, *cpuProfile); err != nil {
				log.Error().Err(err).Msg("plc test: pruning cpu profile")
			}
			profileFile.Close()
			os.Remove(profileFile.Name())
		}

		failed := 0
		for i, msg := range failures {
			if msg == "" {
				continue
			}
			failed++
			fmt.Printf("FAIL %s: %s\n", entries[i], msg)
		}
		fmt.Printf("%d/%d fixtures passed\n", len(entries)-failed, len(entries))
		if failed > 0 {
			return errors.Errorf("%d fixture(s) failed", failed)
		}
		return nil
	}
	return c
}

// runFixture compiles one fixture and returns an empty string on a
// match, or a one-line mismatch description otherwise.
func runFixture(path string) string {
	fx, err := loadFixture(path)
	if err != nil {
		return err.Error()
	}
	output, err := lower.Compile(&fx.program, fx.collection, fx.function)
	if err != nil {
		return errors.Wrapf(err, "compiling %s.%s", fx.collection, fx.function).Error()
	}
	if fx.wantISA != "" && output.ISA != fx.wantISA {
		return fmt.Sprintf("isa mismatch for %s.%s", fx.collection, fx.function)
	}
	return ""
}

// writePrunedProfile reloads the raw CPU profile captured across the
// whole concurrent run and drops every sample outside this module's own
// call stacks, so the persisted profile isolates compiler time from the
// txtar/json/test-harness overhead around it. This is the one place the
// driver exercises github.com/google/pprof/profile directly rather than
// the stdlib runtime/pprof that produced the raw capture.
func writePrunedProfile(raw *os.File, outPath string) error {
	if _, err := raw.Seek(0, 0); err != nil {
		return errors.Wrap(err, "seeking raw profile")
	}
	p, err := profile.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "parsing raw profile")
	}

	const modulePrefix = "github.com/polybase/polylang-sub000/"
	keep := make([]*profile.Sample, 0, len(p.Sample))
	for _, s := range p.Sample {
		for _, loc := range s.Location {
			inModule := false
			for _, line := range loc.Line {
				if line.Function != nil && strings.HasPrefix(line.Function.Name, modulePrefix) {
					inModule = true
					break
				}
			}
			if inModule {
				keep = append(keep, s)
				break
			}
		}
	}
	p.Sample = keep

	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "creating pruned profile")
	}
	defer out.Close()
	return p.Write(out)
}
