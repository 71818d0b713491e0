// signbank stores captured gesture samples and consolidates them into a
// training artifact.
//
// Usage:
//
//	signbank export [--fix]
//	signbank validate [--fix]
//	signbank scan
//	signbank inspect [meta.json]
//	signbank add <frames.json> --label <label>
//	signbank history [--limit n]
//	signbank serve [--listen addr]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/signbank/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// ExitErrors have already been written by the command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
