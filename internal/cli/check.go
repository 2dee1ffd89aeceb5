package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/app"
	"github.com/chazuruo/simtray/internal/coordinator"
	"github.com/chazuruo/simtray/internal/tui"
	"github.com/chazuruo/simtray/internal/upgrade"
)

// CheckOptions contains the options for the check command.
type CheckOptions struct {
	Yes       bool
	CheckOnly bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for an engine update now",
		Long: `Check GitHub for the latest engine release and offer to install it.

A postponed update is re-verified first: if it was installed some other
way the postponed marker is cleared.

Exit codes:
  0 - Success, up to date, or update postponed
  1 - Generic error
  2 - Network error
  4 - Installation failed
  5 - Already on the latest release (with --check-only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "install without asking")
	cmd.Flags().BoolVar(&opts.CheckOnly, "check-only", false, "report whether an update exists without installing")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	observer := tui.NewObserver(tui.ObserverOptions{
		Interactive: useTUI(cfg),
		AssumeYes:   opts.Yes,
		In:          os.Stdin,
		Out:         os.Stdout,
	})
	defer observer.Close()

	a, err := app.New(ctx, cfg, app.Options{Observer: observer, Oneshot: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if opts.CheckOnly {
		return checkOnly(ctx, a)
	}

	outcome := a.Coordinator.CheckForUpdates(ctx, false, true)
	return outcomeError(outcome)
}

// checkOnly compares the latest release with the installed one.
func checkOnly(ctx context.Context, a *app.App) error {
	fmt.Println("Checking for updates...")
	release, err := a.Client.FetchLatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	installed, ok := a.Store.LastInstalledID()
	if ok && installed == string(release.ID) {
		fmt.Printf("Already on latest version: %s\n", release.TagName)
		return upgrade.NewError(upgrade.ExitAlreadyLatest, "Already on latest version", nil)
	}

	if !ok {
		installed = "(none)"
	}
	fmt.Printf("Update available: %s -> %s (%s)\n", installed, release.ID, release.TagName)
	fmt.Println("\nRun 'simtray check' to install the update")
	return nil
}

func outcomeError(outcome coordinator.Outcome) error {
	switch outcome {
	case coordinator.OutcomeQueryFailed:
		return upgrade.NewError(upgrade.ExitNetworkError, "Unable to fetch update information", nil)
	case coordinator.OutcomeInstallFailed:
		return upgrade.NewError(upgrade.ExitInstallError, "Update failed", nil)
	case coordinator.OutcomeBusy:
		return fmt.Errorf("another update check is in progress")
	default:
		return nil
	}
}
