package main

import (
	"encoding/json"
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"

	"github.com/polybase/polylang-sub000/internal/ast"
	"github.com/polybase/polylang-sub000/internal/lower"
)

// compileCommand wires `plc compile` around lower.Compile: it reads a
// JSON-encoded ast.Program, compiles the named collection method (or
// lower.ReadAuthMethod for the `.readAuth` pseudo-method), and writes
// the wrapped ISA text and ABI descriptor next to the input.
func compileCommand() *command {
	c := newCommand("compile", "compile one collection method from a JSON AST")
	program := c.Flag.String("program", "", "path to the JSON-encoded ast.Program")
	collection := c.Flag.String("collection", "", "collection name")
	function := c.Flag.String("function", "", "function name, or .readAuth")
	out := c.Flag.String("out", "", "output path for the ISA text (defaults to stdout)")
	descOut := c.Flag.String("descriptor", "", "output path for the ABI descriptor JSON")
	cpuProfile := c.Flag.String("cpuprofile", "", "write a CPU profile to this path")
	memProfile := c.Flag.String("memprofile", "", "write a heap profile to this path")

	c.Run = func(args []string) error {
		if *program == "" || *collection == "" || *function == "" {
			return errors.New("plc compile: -program, -collection and -function are required")
		}

		stop, err := startProfiling(*cpuProfile, *memProfile)
		if err != nil {
			return err
		}
		defer stop()

		raw, err := os.ReadFile(*program)
		if err != nil {
			return errors.Wrap(err, "plc compile: reading program")
		}
		var prog ast.Program
		if err := json.Unmarshal(raw, &prog); err != nil {
			return errors.Wrap(err, "plc compile: decoding program json")
		}

		log.Debug().Str("collection", *collection).Str("function", *function).Msg("compiling")
		output, err := lower.Compile(&prog, *collection, *function)
		if err != nil {
			return errors.Wrapf(err, "plc compile: %s.%s", *collection, *function)
		}

		if *out == "" {
			_, err = os.Stdout.WriteString(output.ISA)
		} else {
			err = os.WriteFile(*out, []byte(output.ISA), 0o644)
		}
		if err != nil {
			return errors.Wrap(err, "plc compile: writing isa")
		}

		if *descOut != "" {
			descJSON, err := json.MarshalIndent(output.Descriptor, "", "  ")
			if err != nil {
				return errors.Wrap(err, "plc compile: marshaling descriptor")
			}
			if err := os.WriteFile(*descOut, descJSON, 0o644); err != nil {
				return errors.Wrap(err, "plc compile: writing descriptor")
			}
		}
		return nil
	}
	return c
}

// startProfiling starts CPU profiling to cpuPath (if non-empty) and
// returns a stop func that ends CPU profiling and, if memPath is
// non-empty, writes a single heap snapshot. Wraps runtime/pprof; the
// test subcommand captures and prunes its own profile separately.
func startProfiling(cpuPath, memPath string) (func(), error) {
	var cpuFile *os.File
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, errors.Wrap(err, "plc: creating cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "plc: starting cpu profile")
		}
		cpuFile = f
	}

	return func() {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}
		if memPath != "" {
			f, err := os.Create(memPath)
			if err != nil {
				log.Error().Err(err).Msg("plc: creating mem profile")
				return
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Error().Err(err).Msg("plc: writing mem profile")
			}
		}
	}, nil
}
