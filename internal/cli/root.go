// Package cli provides Cobra command definitions for simtray.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the simtray command tree.
func NewRootCommand(version, commit, date, builtBy string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simtray",
		Short: "Keep the simulation engine updated and running",
		Long: `simtray keeps a locally installed simulation engine up to date with its
latest GitHub release and supervises the engine process.

Run 'simtray run' to start the background supervisor, or 'simtray check'
to look for an update once.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	AddGlobalFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewOpenCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewVersionCommand(version, commit, date, builtBy))

	return rootCmd
}
