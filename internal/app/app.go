// Package app wires configuration into the update engine used by the
// simtray commands.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/chazuruo/simtray/internal/config"
	"github.com/chazuruo/simtray/internal/coordinator"
	"github.com/chazuruo/simtray/internal/logging"
	"github.com/chazuruo/simtray/internal/state"
	"github.com/chazuruo/simtray/internal/supervisor"
	"github.com/chazuruo/simtray/internal/upgrade"
)

// Options customize New. Zero values select production defaults.
type Options struct {
	Observer   coordinator.Observer
	Clock      clockwork.Clock
	HTTPClient *http.Client
	// Finder replaces the OS process scan.
	Finder supervisor.Finder
	// Opener replaces the desktop URL handler.
	Opener func(string) error
	// Oneshot is set by commands that exit while a launched engine keeps
	// running. The engine then writes to a plain file instead of a pipe,
	// and Close never stops it.
	Oneshot bool
}

// App holds the components built from one configuration.
type App struct {
	Config      *config.Config
	Store       *state.Store
	Client      *upgrade.ReleaseClient
	Downloader  *upgrade.Downloader
	Supervisor  *supervisor.Supervisor
	Coordinator *coordinator.Coordinator

	processLog io.Closer
	oneshot    bool
}

// New builds the engine for cfg. It adopts a running engine process but
// does not start the update timer loop; see Coordinator.Run.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	client := upgrade.NewReleaseClient(cfg.Release.APIURL, cfg.Release.Owner, cfg.Release.Repo, cfg.Release.UserAgent)
	downloader := upgrade.NewDownloader()
	downloader.SetUserAgent(cfg.Release.UserAgent)
	downloader.SetMaxRetries(cfg.Release.DownloadRetries)
	if opts.HTTPClient != nil {
		client.SetHTTPClient(opts.HTTPClient)
		downloader.SetHTTPClient(opts.HTTPClient)
	}

	processLog, err := openProcessLog(cfg, opts.Oneshot)
	if err != nil {
		return nil, err
	}
	supOpts := []supervisor.Option{supervisor.WithOutput(processLog)}
	if opts.Finder != nil {
		supOpts = append(supOpts, supervisor.WithFinder(opts.Finder))
	}
	if opts.Opener != nil {
		supOpts = append(supOpts, supervisor.WithOpener(opts.Opener))
	}
	sup := supervisor.New(ctx, supervisor.Config{
		Name:        cfg.Process.Name,
		InstallDir:  cfg.BinaryDir(),
		Executable:  cfg.Process.Executable,
		KillTimeout: cfg.Process.KillTimeout.D(),
	}, supOpts...)

	store := state.New(cfg.Install.DataDir)

	coordOpts := []coordinator.Option{coordinator.WithObserver(opts.Observer)}
	if opts.Clock != nil {
		coordOpts = append(coordOpts, coordinator.WithClock(opts.Clock))
	}
	coord := coordinator.New(coordinator.Config{
		Source:        upgrade.NewSource(client, cfg.Release.Timeout.D()),
		Installer:     downloader,
		Supervisor:    sup,
		Store:         store,
		Lock:          store.UpdateLock(),
		InstallDir:    cfg.BinaryDir(),
		Match:         upgrade.NameContains(cfg.Release.AssetPattern),
		CheckInterval: cfg.Schedule.CheckInterval.D(),
	}, coordOpts...)

	log.WithFields(log.Fields{
		"repo":        cfg.Release.Owner + "/" + cfg.Release.Repo,
		"install_dir": cfg.BinaryDir(),
		"data_dir":    cfg.Install.DataDir,
	}).Debug("update engine ready")

	return &App{
		Config:      cfg,
		Store:       store,
		Client:      client,
		Downloader:  downloader,
		Supervisor:  sup,
		Coordinator: coord,
		processLog:  processLog,
		oneshot:     opts.Oneshot,
	}, nil
}

func openProcessLog(cfg *config.Config, oneshot bool) (io.WriteCloser, error) {
	path := cfg.ProcessLogPath()
	if !oneshot {
		return logging.NewRotatingWriter(path, cfg.Log), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open process log: %w", err)
	}
	return f, nil
}

// CheckConnectivity probes the configured URL.
func (a *App) CheckConnectivity(ctx context.Context) error {
	url := a.Config.EffectiveProbeURL()
	if err := a.Client.Probe(ctx, url); err != nil {
		return fmt.Errorf("no connection to %s: %w", url, err)
	}
	return nil
}

// Close stops the supervised process when configured to and releases the
// process log.
func (a *App) Close() error {
	var result *multierror.Error
	if a.Config.Process.KillOnExit && !a.oneshot {
		if err := a.Supervisor.Kill(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.processLog.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close process log: %w", err))
	}
	return result.ErrorOrNil()
}
