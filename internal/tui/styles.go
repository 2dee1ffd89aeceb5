// Package tui renders update prompts, notices and download progress in the
// terminal.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chazuruo/simtray/internal/coordinator"
	simerrors "github.com/chazuruo/simtray/internal/errors"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	noticeBox    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// MenuLabel is the label of the update action for the given availability.
func MenuLabel(available bool) string {
	if available {
		return "Update Sim"
	}
	return "Check for Updates"
}

// Heading returns the title shown above a prompt of the given kind.
func Heading(kind coordinator.PromptKind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(kind.String(), "-", " "))
}

// Message returns the body text for a prompt.
func Message(kind coordinator.PromptKind, pc coordinator.PromptContext) string {
	switch kind {
	case coordinator.PromptConfirmInstall:
		if pc.Pending {
			return "Update to version " + pc.Tag + " is ready. Install now?"
		}
		return "A new version (" + pc.Tag + ") is available. Do you want to update now?"
	case coordinator.PromptAlreadyLatest:
		return "You are already on the latest version: " + pc.Tag
	case coordinator.PromptPostponed:
		return "Update has been postponed. You can install it later with 'simtray check'."
	case coordinator.PromptInstalled:
		return "Successfully updated to version: " + pc.Tag
	case coordinator.PromptError:
		if pc.Tag == "" {
			return "Unable to fetch update information. Please try again later."
		}
		msg := "Update to version " + pc.Tag + " failed."
		cause := pc.Err
		// The tag is already in the message.
		if re, ok := simerrors.AsReleaseError(cause); ok {
			cause = re.Err
		}
		if cause != nil {
			msg += " " + cause.Error()
		}
		return msg
	default:
		return ""
	}
}

func styleFor(kind coordinator.PromptKind) lipgloss.Style {
	switch kind {
	case coordinator.PromptError:
		return errorStyle
	case coordinator.PromptPostponed:
		return warnStyle
	default:
		return infoStyle
	}
}

// renderNotice draws a boxed notice.
func renderNotice(kind coordinator.PromptKind, pc coordinator.PromptContext) string {
	body := headingStyle.Render(Heading(kind)) + "\n" + styleFor(kind).Render(Message(kind, pc))
	return noticeBox.Render(body)
}
