package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/models"
)

// Process exit codes.
const (
	exitPass      = 0
	exitExceeded  = 1
	exitConfig    = 2
	exitTransport = 3
)

const usage = `countgate fails a build when a log count crosses a threshold.

Usage:
  countgate run   [flags]   evaluate one gate from flags, or every gate in -f
  countgate check [flags]   validate settings and print the request without sending it
  countgate serve [flags]   run the HTTP API
  countgate version

Run "countgate <command> -h" for the flags of a command.
`

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitConfig
	}

	switch args[0] {
	case "run":
		return runCommand(args[1:], stdout, stderr)
	case "check":
		return checkCommand(args[1:], stdout, stderr)
	case "serve":
		return serveCommand(args[1:], stderr)
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "%s %s\n", config.ServiceName, config.ServiceVersion)
		return exitPass
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitPass
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitConfig
	}
}

// exitCode maps an evaluation outcome to the process exit code.
func exitCode(err error) int {
	var (
		exceeded *models.ThresholdExceededError
		ce       *models.ConfigurationError
		ee       *models.EncodingError
	)
	switch {
	case err == nil:
		return exitPass
	case errors.As(err, &exceeded):
		return exitExceeded
	case errors.As(err, &ce), errors.As(err, &ee):
		return exitConfig
	default:
		return exitTransport
	}
}
