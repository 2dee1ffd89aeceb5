package main

import (
	"fmt"
	"os"

	"github.com/chazuruo/simtray/internal/cli"
	"github.com/chazuruo/simtray/internal/upgrade"
)

// Version is set at build time using ldflags
var Version = "dev"

// Commit is set at build time using ldflags
var Commit = "unknown"

// Date is set at build time using ldflags
var Date = "unknown"

// BuiltBy is set at build time using ldflags
var BuiltBy = "unknown"

func main() {
	rootCmd := cli.NewRootCommand(Version, Commit, Date, BuiltBy)

	if err := rootCmd.Execute(); err != nil {
		code := upgrade.ExitCode(err)
		if code != upgrade.ExitAlreadyLatest {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}
