package main

import (
	"fmt"
	"os"

	"github.com/mz-tools/mzprof/internal/cli"
	"github.com/mz-tools/mzprof/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}
