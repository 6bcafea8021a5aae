package main

import (
	"os"

	"github.com/roach88/waypost/internal/cli"
)

func main() {
	os.Exit(run())
}

// run executes the CLI. Commands report their own errors (through the
// output formatter or cobra), so only the exit code is left to decide.
func run() int {
	if err := cli.NewRootCommand().Execute(); err != nil {
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
