package main

import (
	"fmt"
	"os"

	"github.com/bnema/chartform/internal/cli"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	rootCmd := cli.NewRootCmd(cli.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
