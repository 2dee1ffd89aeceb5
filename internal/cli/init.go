package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/config"
)

// InitOptions contains the options for the init command.
type InitOptions struct {
	ConfigPath string
	Force      bool

	// Scriptable/flag options for --no-tui mode
	DataDir       string
	CheckInterval time.Duration
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a simtray configuration file",
		Long: `Write a configuration file with default values.

The interactive form asks for the data directory and how often to check
for updates. Use --no-tui with flags for scripted setup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigPath == "" {
				opts.ConfigPath = ConfigPath
			}
			return runInit(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory for state, logs and the engine install")
	cmd.Flags().DurationVar(&opts.CheckInterval, "check-interval", 0, "time between update checks (e.g. 1h)")

	return cmd
}

func runInit(opts *InitOptions) error {
	path := getConfigPath(opts.ConfigPath)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if IsNoTUI() || !isTerminal() {
		return runInitNonInteractive(opts, path, cfg)
	}
	return runInitInteractive(opts, path, cfg)
}

// runInitInteractive runs the init form with TUI.
func runInitInteractive(opts *InitOptions, path string, cfg *config.Config) error {
	dataDir := cfg.Install.DataDir
	interval := cfg.Schedule.CheckInterval.String()
	killOnExit := cfg.Process.KillOnExit

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("State markers, logs and the engine install live here").
				Value(&dataDir),
			huh.NewInput().
				Title("Check interval").
				Description("How often to look for a new release (e.g. 1h, 30m)").
				Value(&interval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Stop the engine when simtray exits?").
				Value(&killOnExit),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid check interval: %w", err)
	}
	opts.DataDir = dataDir
	opts.CheckInterval = d
	cfg.Process.KillOnExit = killOnExit

	if err := writeInitConfig(opts, path, cfg); err != nil {
		return err
	}

	fmt.Println("\n✓ Configuration written successfully!")
	fmt.Printf("  Config:   %s\n", path)
	fmt.Printf("  Data dir: %s\n", cfg.Install.DataDir)
	fmt.Printf("  Interval: %s\n", cfg.Schedule.CheckInterval)
	fmt.Println("\nYou're ready to go! Try 'simtray run'.")
	return nil
}

// runInitNonInteractive runs init in non-TUI mode using flags.
func runInitNonInteractive(opts *InitOptions, path string, cfg *config.Config) error {
	if err := writeInitConfig(opts, path, cfg); err != nil {
		return err
	}
	fmt.Printf("Configuration written to: %s\n", path)
	return nil
}

func writeInitConfig(opts *InitOptions, path string, cfg *config.Config) error {
	if opts.DataDir != "" {
		cfg.Install.DataDir = opts.DataDir
		cfg.Log.File = config.DefaultLogFile(opts.DataDir)
	}
	if opts.CheckInterval > 0 {
		cfg.Schedule.CheckInterval = config.Duration(opts.CheckInterval)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := config.Write(path, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// getConfigPath returns the config file path.
func getConfigPath(override string) string {
	if override != "" {
		return override
	}
	return config.DefaultConfigPath()
}
