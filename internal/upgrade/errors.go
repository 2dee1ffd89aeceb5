package upgrade

import (
	"errors"
	"fmt"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// Exit codes for the check command.
const (
	ExitSuccess           = 0 // Success or update installed
	ExitGenericError      = 1 // Generic error
	ExitNetworkError      = 2 // Network error (couldn't reach GitHub)
	ExitVerificationError = 3 // Downloaded archive failed verification
	ExitInstallError      = 4 // Extraction into the install directory failed
	ExitAlreadyLatest     = 5 // Already on latest release (with --check-only)
	ExitAssetNotFound     = 6 // Release has no matching asset
	ExitMalformedRelease  = 7 // Release payload missing required fields
	ExitDownloadError     = 8 // Asset download failed
)

// ErrRateLimited is wrapped by query errors caused by a 403 or 429 response.
var ErrRateLimited = errors.New("rate limited")

// UpgradeError represents an update operation error.
type UpgradeError struct {
	Code    int
	Message string
	Cause   error
}

func (e *UpgradeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *UpgradeError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel from internal/errors that corresponds to the code,
// so callers can test errors.Is(err, errors.ErrDownloadFailed) without
// knowing about exit codes.
func (e *UpgradeError) Is(target error) bool {
	sentinel := sentinelFor(e.Code)
	return sentinel != nil && target == sentinel
}

func sentinelFor(code int) error {
	switch code {
	case ExitNetworkError:
		return simerrors.ErrNetworkUnavailable
	case ExitVerificationError, ExitDownloadError:
		return simerrors.ErrDownloadFailed
	case ExitInstallError:
		return simerrors.ErrExtractFailed
	case ExitAssetNotFound:
		return simerrors.ErrAssetNotFound
	case ExitMalformedRelease:
		return simerrors.ErrMalformedRelease
	default:
		return nil
	}
}

// NewError creates a new UpgradeError.
func NewError(code int, message string, cause error) *UpgradeError {
	return &UpgradeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ExitCode returns the exit code carried by err, ExitSuccess for nil and
// ExitGenericError for errors that are not UpgradeErrors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ue *UpgradeError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ExitGenericError
}
