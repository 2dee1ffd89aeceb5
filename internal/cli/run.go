package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/app"
	"github.com/chazuruo/simtray/internal/power"
	"github.com/chazuruo/simtray/internal/tui"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the update supervisor",
		Long: `Run the long-lived supervisor.

On start it checks for a new release and installs it without asking when
this is the first install, then starts the engine. While running it checks
again every [schedule].check_interval, pauses while the machine sleeps and
checks once after it wakes. Updates found later ask for confirmation;
declined updates are kept until confirmed with 'simtray check'.
Only one process updates at a time; the supervisor picks up what a
'simtray check' installed or postponed on its next check.

Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context())
		},
	}
	return cmd
}

func runRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := tui.NewObserver(tui.ObserverOptions{
		Interactive: useTUI(cfg),
		Headless:    !isTerminal(),
		In:          os.Stdin,
		Out:         os.Stdout,
	})
	defer observer.Close()

	a, err := app.New(ctx, cfg, app.Options{Observer: observer})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	if cfg.Network.RequireConnectivity {
		if err := a.CheckConnectivity(ctx); err != nil {
			return fmt.Errorf("simtray needs an internet connection, check it and start again: %w", err)
		}
	}

	log.Infof("simtray started, checking %s/%s every %s", cfg.Release.Owner, cfg.Release.Repo, cfg.Schedule.CheckInterval)
	a.Coordinator.Start()
	a.Coordinator.CheckForUpdates(ctx, true, false)

	monitor := power.NewMonitor(ctx, clockwork.NewRealClock(), cfg.Schedule.PowerPollInterval.D())
	defer func() { _ = monitor.Close() }()

	if err := a.Coordinator.Run(ctx, monitor.Events()); err != nil {
		return err
	}
	log.Info("simtray stopped")
	return nil
}
