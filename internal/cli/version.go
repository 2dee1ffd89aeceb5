package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/simtray/internal/state"
)

// BuildInfo describes the simtray binary and the engine release it manages.
type BuildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	BuiltBy string `json:"built_by,omitempty" yaml:"built_by,omitempty"`
	Go      string `json:"go_version" yaml:"go_version"`
	// Engine is the last installed release id, empty before the first install.
	Engine string `json:"engine_release,omitempty" yaml:"engine_release,omitempty"`
}

// VersionOptions contains the options for the version command.
type VersionOptions struct {
	Short  bool
	Format string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date, builtBy string) *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display simtray and engine versions",
		Long: `Display the simtray build information and the release id of the
installed engine, if any.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := BuildInfo{
				Version: version,
				Commit:  commit,
				Date:    date,
				BuiltBy: builtBy,
				Go:      runtime.Version(),
			}
			if cfg, err := loadConfig(); err == nil {
				if id, ok := state.New(cfg.Install.DataDir).LastInstalledID(); ok {
					info.Engine = id
				}
			}
			return writeVersion(os.Stdout, opts, info)
		},
	}

	cmd.Flags().BoolVar(&opts.Short, "short", false, "print only the simtray version")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format: text, json or yaml")

	return cmd
}

func writeVersion(w io.Writer, opts *VersionOptions, info BuildInfo) error {
	if opts.Short {
		_, err := fmt.Fprintln(w, info.Version)
		return err
	}

	switch opts.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(info)
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.Format)
	}

	fmt.Fprintf(w, "simtray %s (%s, %s)\n", info.Version, info.Commit, info.Date)
	if info.BuiltBy != "" && info.BuiltBy != "unknown" {
		fmt.Fprintf(w, "built by: %s\n", info.BuiltBy)
	}
	fmt.Fprintf(w, "go: %s\n", info.Go)
	engine := info.Engine
	if engine == "" {
		engine = "not installed"
	}
	fmt.Fprintf(w, "engine release: %s\n", engine)
	return nil
}
