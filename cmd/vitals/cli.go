package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

const synopsis = `SYNOPSIS
	vitals -realtime | -batch [-n N] [-o path] | -help

OPTIONS
	-realtime
	  Polls the vitals endpoint until interrupted (SIGINT/SIGTERM), then
	  writes the predictions dataset.

	-batch
	  Polls the endpoint exactly N times, then writes the dataset.
	  Intended for demos.

	-n N
	  Number of batch cycles (default 1).

	-o path
	  Dataset path; "{run}" is replaced by the run ID
	  (default $VITALS_OUTPUT or predictions.csv).

	-help
	  Prints this synopsis.

Further settings are read from VITALS_* environment variables.
`

// errUsage marks command-line errors that should exit with status 2.
var errUsage = errors.New("usage")

// invocation is the parsed command line.
type invocation struct {
	mode   string // "realtime" or "batch"; empty with help
	cycles int
	output string
	help   bool
}

// parseArgs parses args (without the program name). Usage problems are
// reported as errUsage with a one-line explanation.
func parseArgs(args []string) (invocation, error) {
	var inv invocation
	var realtime, batch bool

	fs := flag.NewFlagSet("vitals", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&realtime, "realtime", false, "")
	fs.BoolVar(&batch, "batch", false, "")
	fs.IntVar(&inv.cycles, "n", 1, "")
	fs.StringVar(&inv.output, "o", "", "")
	fs.BoolVar(&inv.help, "help", false, "")

	if err := fs.Parse(args); err != nil {
		return inv, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return inv, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	if inv.help {
		return inv, nil
	}

	switch {
	case realtime && batch:
		return inv, fmt.Errorf("%w: -realtime and -batch are mutually exclusive", errUsage)
	case realtime:
		inv.mode = "realtime"
	case batch:
		inv.mode = "batch"
		if inv.cycles < 1 {
			return inv, fmt.Errorf("%w: -n must be at least 1, got %d", errUsage, inv.cycles)
		}
	default:
		return inv, fmt.Errorf("%w: missing mode", errUsage)
	}
	return inv, nil
}

func printUsageError(w io.Writer, err error) {
	fmt.Fprintf(w, "vitals: %v. See 'vitals -help'.\n", err)
}
