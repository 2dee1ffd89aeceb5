package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/app"
)

// NewStopCommand creates the stop command.
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context())
		},
	}
}

func runStop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
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

	pid, running := a.Supervisor.PID()
	if !running {
		fmt.Println("Engine is not running")
		return nil
	}
	if err := a.Supervisor.Kill(); err != nil {
		return err
	}
	fmt.Printf("Stopped engine (pid %d)\n", pid)
	return nil
}
