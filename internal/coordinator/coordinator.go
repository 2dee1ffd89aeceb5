// Package coordinator decides when the simulation engine is updated. It
// checks for releases on a timer, on resume and on request, keeps the
// postponed-update marker, and orders kill, install and relaunch.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	simerrors "github.com/chazuruo/simtray/internal/errors"
	"github.com/chazuruo/simtray/internal/logging"
	"github.com/chazuruo/simtray/internal/power"
	"github.com/chazuruo/simtray/internal/upgrade"
)

// ReleaseSource returns the latest release or nil when it is unknown.
type ReleaseSource interface {
	Latest(ctx context.Context) *upgrade.Release
}

// Installer downloads a release asset and extracts it into destDir.
type Installer interface {
	FetchAndExtract(ctx context.Context, release *upgrade.Release, match upgrade.AssetMatcher, destDir string, onProgress func(percent int)) error
}

// Supervisor controls the engine process.
type Supervisor interface {
	Kill() error
	Launch(forceRestart bool) error
}

// Store persists the installed release id and the pending marker.
type Store interface {
	HasPendingUpdate() bool
	SetPendingUpdate(pending bool) error
	LastInstalledID() (string, bool)
	SetLastInstalledID(id string) error
}

// markerPollInterval is how often Run re-reads the markers while the
// update timer is stopped.
const markerPollInterval = time.Minute

// Locker excludes update cycles run by other processes on the same install.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// State is the coordinator's position in the update cycle.
type State int

const (
	StateIdle State = iota
	StateCheckPending
	StateChecking
	StateAwaitingDecision
	StateInstalling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckPending:
		return "check-pending"
	case StateChecking:
		return "checking"
	case StateAwaitingDecision:
		return "awaiting-decision"
	case StateInstalling:
		return "installing"
	default:
		return "unknown"
	}
}

// Outcome is the result of one CheckForUpdates call.
type Outcome int

const (
	OutcomeBusy Outcome = iota + 1
	OutcomeQueryFailed
	OutcomeUpToDate
	OutcomeStaleCleared
	OutcomePostponed
	OutcomeDeclined
	OutcomeInstalled
	OutcomeInstallFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBusy:
		return "busy"
	case OutcomeQueryFailed:
		return "query failed"
	case OutcomeUpToDate:
		return "up to date"
	case OutcomeStaleCleared:
		return "stale pending update cleared"
	case OutcomePostponed:
		return "postponed"
	case OutcomeDeclined:
		return "declined"
	case OutcomeInstalled:
		return "installed"
	case OutcomeInstallFailed:
		return "install failed"
	default:
		return "unknown"
	}
}

// Config wires the coordinator to its collaborators.
type Config struct {
	Source     ReleaseSource
	Installer  Installer
	Supervisor Supervisor
	Store      Store
	// Lock, when set, is held for the whole of each check.
	Lock Locker

	// InstallDir receives the extracted archive.
	InstallDir string
	// Match selects the installable asset.
	Match upgrade.AssetMatcher
	// CheckInterval is the period of the update timer.
	CheckInterval time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock driving the update timer.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithObserver registers the shell callbacks.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// Coordinator runs the update state machine. At most one check runs at a
// time, across processes when Config.Lock is set; overlapping requests are
// dropped.
type Coordinator struct {
	cfg      Config
	clock    clockwork.Clock
	observer Observer
	sem      *semaphore.Weighted

	mu        sync.Mutex
	state     State
	available bool
	// timerWanted is the timer state the update cycle asks for;
	// the ticker only runs while it is set and the machine is awake.
	timerWanted bool
	suspended   bool
	ticker      clockwork.Ticker
	wake        chan struct{}
}

// New creates a coordinator. A pending marker on disk puts it in
// CheckPending with the timer stopped and an update available.
func New(cfg Config, opts ...Option) *Coordinator {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	c := &Coordinator{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
		sem:      semaphore.NewWeighted(1),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Store.HasPendingUpdate() {
		log.Info("found a postponed update, waiting for it to be confirmed")
		c.state = StateCheckPending
		c.available = true
	} else {
		c.state = StateIdle
		c.timerWanted = true
	}

	c.mu.Lock()
	c.applyTimerLocked()
	c.mu.Unlock()
	return c
}

// Start publishes the initial availability to the observer.
func (c *Coordinator) Start() {
	c.observer.OnAvailabilityChanged(c.Available())
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Available reports whether a newer release is known and not installed.
func (c *Coordinator) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// TimerActive reports whether the periodic check is scheduled.
func (c *Coordinator) TimerActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// CheckForUpdates runs one update cycle. startup marks the check made when
// the shell starts; interactive marks a check the user asked for, which
// may show notices.
func (c *Coordinator) CheckForUpdates(ctx context.Context, startup, interactive bool) Outcome {
	if !c.sem.TryAcquire(1) {
		log.Debug("update check already in progress, skipping")
		return OutcomeBusy
	}
	defer c.sem.Release(1)

	if c.cfg.Lock != nil {
		ok, err := c.cfg.Lock.TryLock()
		if err != nil {
			log.Errorf("failed to take the update lock: %v", err)
			return OutcomeBusy
		}
		if !ok {
			log.Info("another simtray process is updating, skipping")
			return OutcomeBusy
		}
		defer func() {
			if err := c.cfg.Lock.Unlock(); err != nil {
				log.Warnf("failed to release the update lock: %v", err)
			}
		}()
	}

	ctx = logging.WithCheckID(ctx, uuid.NewString())
	log.WithContext(ctx).WithFields(log.Fields{
		"startup":     startup,
		"interactive": interactive,
	}).Debug("checking for updates")

	var outcome Outcome
	if c.syncFromStore(ctx) && !interactive {
		c.launchExisting(ctx)
		outcome = OutcomePostponed
	} else if c.Available() && c.cfg.Store.HasPendingUpdate() {
		outcome = c.checkPending(ctx, startup, interactive)
	} else {
		outcome = c.checkIdle(ctx, startup, interactive)
	}

	if c.cfg.Store.HasPendingUpdate() {
		c.setState(StateCheckPending)
	} else {
		c.setState(StateIdle)
	}
	log.WithContext(ctx).Infof("update check finished: %s", outcome)
	return outcome
}

// syncFromStore adopts marker changes made by another process since the
// last check. It reports true when a postponement was adopted.
func (c *Coordinator) syncFromStore(ctx context.Context) bool {
	pending := c.cfg.Store.HasPendingUpdate()
	switch available := c.Available(); {
	case available && !pending:
		log.WithContext(ctx).Info("postponed update was handled elsewhere, resuming periodic checks")
		c.setTimer(true)
		c.setAvailable(false)
	case !available && pending:
		log.WithContext(ctx).Info("update was postponed elsewhere, waiting for it to be confirmed")
		c.setTimer(false)
		c.setAvailable(true)
		return true
	}
	return false
}

// SyncFromStore adopts marker changes made by another process without
// querying for a release. It does nothing while a check runs.
func (c *Coordinator) SyncFromStore(ctx context.Context) {
	if !c.sem.TryAcquire(1) {
		return
	}
	defer c.sem.Release(1)

	c.syncFromStore(ctx)
	if c.cfg.Store.HasPendingUpdate() {
		c.setState(StateCheckPending)
	} else {
		c.setState(StateIdle)
	}
}

func (c *Coordinator) checkPending(ctx context.Context, startup, interactive bool) Outcome {
	release := c.cfg.Source.Latest(ctx)
	if release == nil {
		if interactive {
			c.prompt(PromptError, PromptContext{Pending: true, Err: simerrors.ErrNetworkUnavailable})
		}
		c.launchExisting(ctx)
		return OutcomeQueryFailed
	}

	if last, _ := c.cfg.Store.LastInstalledID(); string(release.ID) == last {
		log.WithContext(ctx).WithField("release_id", release.ID).Info("postponed update is already installed")
		c.clearPending(ctx)
		c.setTimer(true)
		c.setAvailable(false)
		if interactive {
			c.prompt(PromptAlreadyLatest, PromptContext{Tag: release.TagName})
		}
		c.launchExisting(ctx)
		return OutcomeStaleCleared
	}

	if !startup && interactive {
		c.setState(StateAwaitingDecision)
		if c.prompt(PromptConfirmInstall, PromptContext{Tag: release.TagName, Pending: true}) != DecisionYes {
			c.launchExisting(ctx)
			return OutcomeDeclined
		}
	}
	return c.install(ctx, release, interactive)
}

func (c *Coordinator) checkIdle(ctx context.Context, startup, interactive bool) Outcome {
	c.setState(StateChecking)

	release := c.cfg.Source.Latest(ctx)
	if release == nil {
		c.launchExisting(ctx)
		return OutcomeQueryFailed
	}

	last, installed := c.cfg.Store.LastInstalledID()
	if installed && string(release.ID) == last {
		if interactive {
			c.prompt(PromptAlreadyLatest, PromptContext{Tag: release.TagName})
		}
		c.launchExisting(ctx)
		return OutcomeUpToDate
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"release_id": release.ID,
		"tag":        release.TagName,
		"installed":  last,
	}).Info("new release available")

	// First installs and startup checks never wait for an answer.
	if !startup && installed {
		c.setState(StateAwaitingDecision)
		if c.prompt(PromptConfirmInstall, PromptContext{Tag: release.TagName}) != DecisionYes {
			return c.postpone(ctx, release, interactive)
		}
	}
	return c.install(ctx, release, interactive)
}

func (c *Coordinator) postpone(ctx context.Context, release *upgrade.Release, interactive bool) Outcome {
	if err := c.cfg.Store.SetPendingUpdate(true); err != nil {
		log.WithContext(ctx).Errorf("failed to persist postponed update: %v", err)
	}
	c.setTimer(false)
	c.setAvailable(true)
	log.WithContext(ctx).WithField("tag", release.TagName).Info("update postponed")

	if interactive {
		c.prompt(PromptPostponed, PromptContext{Tag: release.TagName})
	}
	c.launchExisting(ctx)
	return OutcomePostponed
}

func (c *Coordinator) install(ctx context.Context, release *upgrade.Release, interactive bool) Outcome {
	c.setState(StateInstalling)
	logger := log.WithContext(ctx).WithFields(log.Fields{
		"release_id": release.ID,
		"tag":        release.TagName,
	})

	if err := c.cfg.Supervisor.Kill(); err != nil {
		logger.Errorf("not installing while the engine is still running: %v", err)
		return c.installFailed(ctx, release, &simerrors.ReleaseError{Op: "kill", ReleaseID: string(release.ID), Err: err}, interactive)
	}

	logger.Info("installing release")
	err := c.cfg.Installer.FetchAndExtract(ctx, release, c.cfg.Match, c.cfg.InstallDir, c.observer.OnDownloadProgress)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", simerrors.ErrCanceled, err)
		}
		logger.Errorf("install failed: %v", err)
		return c.installFailed(ctx, release, &simerrors.ReleaseError{Op: "install", ReleaseID: string(release.ID), Err: err}, interactive)
	}

	if err := c.cfg.Store.SetLastInstalledID(string(release.ID)); err != nil {
		logger.Errorf("failed to record installed release: %v", err)
	}
	c.clearPending(ctx)
	c.setTimer(true)
	c.setAvailable(false)
	logger.Info("release installed")

	c.prompt(PromptInstalled, PromptContext{Tag: release.TagName})
	if err := c.cfg.Supervisor.Launch(true); err != nil {
		logger.Errorf("failed to start the new release: %v", err)
	}
	return OutcomeInstalled
}

// installFailed leaves the state as it was; the old process is not
// restored and whatever is on disk is started. A canceled install is the
// shell shutting down, so nothing is shown or started.
func (c *Coordinator) installFailed(ctx context.Context, release *upgrade.Release, err error, interactive bool) Outcome {
	if simerrors.IsCanceled(err) {
		return OutcomeInstallFailed
	}
	if interactive {
		c.prompt(PromptError, PromptContext{Tag: release.TagName, Err: err})
	}
	c.launchExisting(ctx)
	return OutcomeInstallFailed
}

func (c *Coordinator) launchExisting(ctx context.Context) {
	if err := c.cfg.Supervisor.Launch(false); err != nil {
		log.WithContext(ctx).Warnf("failed to launch installed engine: %v", err)
	}
}

func (c *Coordinator) clearPending(ctx context.Context) {
	if err := c.cfg.Store.SetPendingUpdate(false); err != nil {
		log.WithContext(ctx).Errorf("failed to clear postponed update: %v", err)
	}
}

func (c *Coordinator) prompt(kind PromptKind, pc PromptContext) Decision {
	return c.observer.OnUserPrompt(kind, pc)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Coordinator) setAvailable(available bool) {
	c.mu.Lock()
	changed := c.available != available
	c.available = available
	c.mu.Unlock()

	if changed {
		c.observer.OnAvailabilityChanged(available)
	}
}

func (c *Coordinator) setTimer(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerWanted = on
	c.applyTimerLocked()
}

// Suspend stops the timer until Resume.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info("machine suspending, pausing update checks")
	c.suspended = true
	c.applyTimerLocked()
}

// Resume restores the timer and runs one non-interactive check.
func (c *Coordinator) Resume(ctx context.Context) Outcome {
	c.resumeTimer()
	return c.CheckForUpdates(ctx, false, false)
}

func (c *Coordinator) resumeTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Info("machine resumed")
	c.suspended = false
	c.applyTimerLocked()
}

func (c *Coordinator) applyTimerLocked() {
	run := c.timerWanted && !c.suspended
	switch {
	case run && c.ticker == nil:
		c.ticker = c.clock.NewTicker(c.cfg.CheckInterval)
		log.Debugf("update timer started, every %s", c.cfg.CheckInterval)
	case !run && c.ticker != nil:
		c.ticker.Stop()
		c.ticker = nil
		log.Debug("update timer stopped")
	default:
		return
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) tickerChan() <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Run dispatches timer ticks and power events until ctx ends, then waits
// for the check in flight. A nil events channel disables power handling.
func (c *Coordinator) Run(ctx context.Context, events <-chan power.Event) error {
	var wg sync.WaitGroup
	markers := c.clock.NewTicker(markerPollInterval)
	defer func() {
		markers.Stop()
		wg.Wait()
		c.setTimer(false)
	}()

	check := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CheckForUpdates(ctx, false, false)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-c.wake:
		case <-c.tickerChan():
			log.Debug("update timer fired")
			check()
		case <-markers.Chan():
			if !c.TimerActive() {
				c.SyncFromStore(ctx)
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev {
			case power.Suspend:
				c.Suspend()
			case power.Resume:
				c.resumeTimer()
				check()
			}
		}
	}
}
