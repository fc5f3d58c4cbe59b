// Command plc is the reference driver around package lower: it loads a
// pre-parsed program (the source-language parser itself is an external
// collaborator, never part of this module), compiles one collection
// method into ISA text plus its ABI descriptor, and can batch-verify a
// directory of txtar golden fixtures the way a CI smoke test would.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// log is the process-wide logger; run always installs a
// zerolog.ConsoleWriter over the stderr writer it is given.
var log zerolog.Logger

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(writer).With().Timestamp().Logger()

	name := args[0]
	rest := args[1:]

	cmds := []*command{compileCommand(), testCommand()}
	for _, c := range cmds {
		if c.Name != name {
			continue
		}
		verbose := c.Flag.Bool("v", false, "enable debug-level logging")
		if err := c.Flag.Parse(rest); err != nil {
			return 2
		}
		if *verbose {
			log = log.Level(zerolog.DebugLevel)
		} else {
			log = log.Level(zerolog.InfoLevel)
		}
		if err := c.Run(c.Flag.Args()); err != nil {
			// Error:-prefixed one-line failure (§7); the same error is
			// also logged at debug level, which -v makes visible.
			log.Debug().Err(err).Msg("command failed")
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stderr, "plc: unknown command %q\n", name)
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: plc <command> [arguments]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  compile   compile one collection method from a JSON AST")
	fmt.Fprintln(w, "  test      batch-verify a directory of txtar golden fixtures")
}
