package main

import (
	"fmt"
	"os"

	"github.com/roach88/a2ui/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
