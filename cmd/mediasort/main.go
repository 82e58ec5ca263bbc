package main

import (
	"fmt"
	"io"
	"os"

	"mediasort/internal/errors"
	"mediasort/internal/filetime"
	"mediasort/internal/log"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"

	// timeSource dates every file; tests swap it for a fake
	timeSource filetime.Source = filetime.Platform{}
)

// errFilesFailed is returned in strict mode when at least one file failed
var errFilesFailed = errors.New("one or more files could not be relocated")

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(execute(NewRootCmd(), os.Stderr))
}

// execute runs root and maps its outcome to a process exit code.
func execute(root *cobra.Command, stderr io.Writer) int {
	err := root.Execute()
	defer log.Close()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errFilesFailed):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	case errors.IsConfigError(err):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}
