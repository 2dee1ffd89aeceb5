package coordinator

// PromptKind identifies a user-facing notice or question.
type PromptKind int

const (
	// PromptConfirmInstall asks whether to install a newer release now.
	PromptConfirmInstall PromptKind = iota + 1
	// PromptAlreadyLatest reports that the installed release is current.
	PromptAlreadyLatest
	// PromptPostponed reports that a declined update was saved for later.
	PromptPostponed
	// PromptError reports a failed check or install.
	PromptError
	// PromptInstalled reports a successful install.
	PromptInstalled
)

func (k PromptKind) String() string {
	switch k {
	case PromptConfirmInstall:
		return "confirm-install"
	case PromptAlreadyLatest:
		return "already-latest"
	case PromptPostponed:
		return "postponed"
	case PromptError:
		return "error"
	case PromptInstalled:
		return "installed"
	default:
		return "unknown"
	}
}

// Decision is the answer to a prompt. Notices are answered with
// DecisionAcknowledge.
type Decision int

const (
	DecisionNo Decision = iota
	DecisionYes
	DecisionAcknowledge
)

// PromptContext carries what a prompt needs to render.
type PromptContext struct {
	Tag string
	// Pending is set when confirming an update that was postponed earlier.
	Pending bool
	Err     error
}

// Observer is implemented by the shell. Calls are synchronous and made
// after the persistent writes of the transition that caused them.
type Observer interface {
	OnAvailabilityChanged(available bool)
	OnUserPrompt(kind PromptKind, pc PromptContext) Decision
	OnDownloadProgress(percent int)
}

// nopObserver declines every question.
type nopObserver struct{}

func (nopObserver) OnAvailabilityChanged(bool) {}

func (nopObserver) OnUserPrompt(kind PromptKind, _ PromptContext) Decision {
	if kind == PromptConfirmInstall {
		return DecisionNo
	}
	return DecisionAcknowledge
}

func (nopObserver) OnDownloadProgress(int) {}
