package tui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	log "github.com/sirupsen/logrus"

	"github.com/chazuruo/simtray/internal/coordinator"
)

// ObserverOptions configures an Observer.
type ObserverOptions struct {
	// Interactive selects huh prompts and a Bubble Tea progress bar.
	// Otherwise questions are read as y/N lines from In.
	Interactive bool
	// AssumeYes answers every install question with yes.
	AssumeYes bool
	// Headless answers every install question with no and only logs
	// notices. It is used by the background supervisor.
	Headless bool

	In  io.Reader
	Out io.Writer
}

// Observer presents coordinator prompts in the terminal.
type Observer struct {
	opts ObserverOptions
	in   *bufio.Reader

	mu        sync.Mutex
	available bool
	progress  progressRunner
	// lastDecile dedups plain progress lines.
	lastDecile int
}

// NewObserver creates an Observer writing to opts.Out.
func NewObserver(opts ObserverOptions) *Observer {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	o := &Observer{opts: opts, lastDecile: -1}
	if opts.In != nil {
		o.in = bufio.NewReader(opts.In)
	}
	o.progress.out = opts.Out
	return o
}

// Available returns the last availability reported by the coordinator.
func (o *Observer) Available() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.available
}

func (o *Observer) OnAvailabilityChanged(available bool) {
	o.mu.Lock()
	o.available = available
	o.mu.Unlock()

	log.Debugf("update availability changed to %t", available)
	if !o.opts.Headless {
		fmt.Fprintln(o.opts.Out, mutedStyle.Render("menu: "+MenuLabel(available)))
	}
}

func (o *Observer) OnUserPrompt(kind coordinator.PromptKind, pc coordinator.PromptContext) coordinator.Decision {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.endProgressLocked()

	if kind != coordinator.PromptConfirmInstall {
		o.notify(kind, pc)
		return coordinator.DecisionAcknowledge
	}

	switch {
	case o.opts.AssumeYes:
		log.Infof("installing %s without asking", pc.Tag)
		return coordinator.DecisionYes
	case o.opts.Headless:
		log.Infof("update %s found; run 'simtray check' to install it", pc.Tag)
		return coordinator.DecisionNo
	case o.opts.Interactive:
		return o.confirmTUI(pc)
	default:
		return o.confirmPlain(pc)
	}
}

func (o *Observer) OnDownloadProgress(percent int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.opts.Headless {
		return
	}
	if o.opts.Interactive {
		o.progress.update(percent)
		return
	}
	// Plain output prints every tenth percent.
	if percent/10 == o.lastDecile && percent != 100 {
		return
	}
	o.lastDecile = percent / 10
	fmt.Fprintf(o.opts.Out, "Downloading... %d%%\n", percent)
}

// Close stops a progress bar left running by a failed download.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endProgressLocked()
}

func (o *Observer) endProgressLocked() {
	o.progress.stop()
	o.lastDecile = -1
}

func (o *Observer) notify(kind coordinator.PromptKind, pc coordinator.PromptContext) {
	entry := log.WithField("tag", pc.Tag)
	if pc.Err != nil {
		entry = entry.WithError(pc.Err)
	}
	entry.Infof("%s: %s", Heading(kind), Message(kind, pc))

	if o.opts.Headless {
		return
	}
	if o.opts.Interactive {
		fmt.Fprintln(o.opts.Out, renderNotice(kind, pc))
		return
	}
	fmt.Fprintf(o.opts.Out, "%s: %s\n", Heading(kind), Message(kind, pc))
}

func (o *Observer) confirmTUI(pc coordinator.PromptContext) coordinator.Decision {
	var install bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(Heading(coordinator.PromptConfirmInstall)).
				Description(Message(coordinator.PromptConfirmInstall, pc)).
				Affirmative("Install").
				Negative("Later").
				Value(&install),
		),
	).Run()
	if err != nil {
		log.Warnf("confirm prompt failed: %v", err)
		return coordinator.DecisionNo
	}
	if install {
		return coordinator.DecisionYes
	}
	return coordinator.DecisionNo
}

func (o *Observer) confirmPlain(pc coordinator.PromptContext) coordinator.Decision {
	fmt.Fprintf(o.opts.Out, "%s [y/N] ", Message(coordinator.PromptConfirmInstall, pc))
	if o.in == nil {
		fmt.Fprintln(o.opts.Out)
		return coordinator.DecisionNo
	}

	line, err := o.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(o.opts.Out)
		return coordinator.DecisionNo
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return coordinator.DecisionYes
	default:
		return coordinator.DecisionNo
	}
}
