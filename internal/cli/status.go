package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/app"
	"github.com/chazuruo/simtray/internal/tui"
)

// StatusOptions contains the options for the status command.
type StatusOptions struct {
	Format string
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	opts := &StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show install, update and process status",
		Long: `Display the current state of the engine install.

Shows:
- Config file and data directory
- Installed release id and whether an update is postponed
- Whether the engine is running, and its pid
- The update action offered ("Update Sim" or "Check for Updates")`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), opts, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format: table, json or yaml")

	return cmd
}

func runStatus(ctx context.Context, opts *StatusOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", opts.Format)
	}

	cfg, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	a, err := app.New(ctx, cfg, app.Options{Oneshot: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	status := a.Status(configPathInUse(), tui.MenuLabel)
	switch opts.Format {
	case "json":
		return app.PrintStatusJSON(w, status)
	case "yaml":
		return app.PrintStatusYAML(w, status)
	default:
		app.PrintStatus(w, status)
		return nil
	}
}
