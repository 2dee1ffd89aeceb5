package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/app"
)

// NewOpenCommand creates the open command.
func NewOpenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [url]",
		Short: "Start the engine, or open its web UI if it is running",
		Long: `Start the installed engine when it is not running. When it is already
running, open its web UI in the default browser instead.

The URL defaults to [process].url.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return runOpen(cmd.Context(), url)
		},
	}
	return cmd
}

func runOpen(ctx context.Context, url string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if url == "" {
		url = cfg.Process.URL
	}

	a, err := app.New(ctx, cfg, app.Options{Oneshot: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Supervisor.LaunchOrOpen(url); err != nil {
		return err
	}
	if pid, ok := a.Supervisor.PID(); ok {
		fmt.Printf("Engine running (pid %d) at %s\n", pid, url)
	} else {
		fmt.Printf("Engine is not installed yet. Run 'simtray check' to install it.\n")
	}
	return nil
}
