// Package errors provides the error taxonomy shared by the simtray update
// engine and process supervisor.
//
// # Error Types
//
// Base errors (sentinel errors):
//   - ErrNetworkUnavailable - release query or transport failure
//   - ErrAssetNotFound - release carries no installable payload
//   - ErrDownloadFailed - asset could not be fully downloaded
//   - ErrExtractFailed - archive corrupt or install directory not writable
//   - ErrProcessControl - supervised process could not be killed or started
//   - ErrMalformedRelease - release payload missing required fields
//   - ErrNotFound - resource not found
//   - ErrInvalid - validation failed
//   - ErrIO - file I/O error
//   - ErrCanceled - user canceled operation
//
// Wrapped error types (add context):
//   - ReleaseError{Op, Err, ReleaseID} - release query and install errors
//   - ProcessError{Op, Err, PID} - supervised process errors
//   - ConfigError{Path, Err} - configuration errors
//
// # Usage
//
//	// Use sentinel errors directly
//	return errors.ErrAssetNotFound
//
//	// Wrap with context using Wrap
//	return errors.Wrap(err, "fetchAndExtract")
//
//	// Use structured error types
//	return &errors.ReleaseError{Op: "install", Err: errors.ErrExtractFailed, ReleaseID: "101"}
//
//	// Check error types
//	if errors.IsNetworkUnavailable(err) {
//	    // treat as "no update this cycle"
//	}
package errors

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	// ErrNetworkUnavailable indicates the release API or a download could not be reached.
	ErrNetworkUnavailable = baseError("network unavailable")

	// ErrAssetNotFound indicates no release asset matched the payload name.
	ErrAssetNotFound = baseError("asset not found")

	// ErrDownloadFailed indicates an asset download did not complete.
	ErrDownloadFailed = baseError("download failed")

	// ErrExtractFailed indicates the archive could not be extracted.
	ErrExtractFailed = baseError("extract failed")

	// ErrProcessControl indicates the supervised process could not be controlled.
	ErrProcessControl = baseError("process control failed")

	// ErrMalformedRelease indicates a release payload had an unexpected shape.
	ErrMalformedRelease = baseError("malformed release")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = baseError("not found")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrIO indicates a file I/O error.
	ErrIO = baseError("I/O error")

	// ErrCanceled indicates the user canceled an operation.
	ErrCanceled = baseError("canceled")
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// ReleaseError represents an error that occurred while querying or installing a release.
type ReleaseError struct {
	// Op is the operation being performed (e.g., "query", "download", "extract").
	Op string
	// Err is the underlying error.
	Err error
	// ReleaseID is the release identifier (optional).
	ReleaseID string
}

func (e *ReleaseError) Error() string {
	if e.ReleaseID != "" {
		return fmt.Sprintf("release %s %q: %s", e.Op, e.ReleaseID, e.Err)
	}
	return fmt.Sprintf("release %s: %s", e.Op, e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// ProcessError represents an error that occurred while controlling the supervised process.
type ProcessError struct {
	// Op is the operation being performed (e.g., "kill", "launch", "scan").
	Op string
	// Err is the underlying error.
	Err error
	// PID is the process id, zero when unknown.
	PID int
}

func (e *ProcessError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("process %s (pid %d): %s", e.Op, e.PID, e.Err)
	}
	return fmt.Sprintf("process %s: %s", e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ConfigError represents an error related to configuration.
type ConfigError struct {
	// Path is the configuration file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Wrap adds context to an error by wrapping it with an operation name.
// The returned error implements Unwrap() allowing errors.Is and errors.As
// to work with the wrapped error.
func Wrap(err error, op string) error {
	return &wrappedError{op: op, err: err}
}

// wrappedError is an error with an operation context.
type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.err) }
func (e *wrappedError) Unwrap() error { return e.err }

// IsNetworkUnavailable reports whether err is or wraps ErrNetworkUnavailable.
func IsNetworkUnavailable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// IsAssetNotFound reports whether err is or wraps ErrAssetNotFound.
func IsAssetNotFound(err error) bool {
	return errors.Is(err, ErrAssetNotFound)
}

// IsDownloadFailed reports whether err is or wraps ErrDownloadFailed.
func IsDownloadFailed(err error) bool {
	return errors.Is(err, ErrDownloadFailed)
}

// IsExtractFailed reports whether err is or wraps ErrExtractFailed.
func IsExtractFailed(err error) bool {
	return errors.Is(err, ErrExtractFailed)
}

// IsProcessControl reports whether err is or wraps ErrProcessControl.
func IsProcessControl(err error) bool {
	return errors.Is(err, ErrProcessControl)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsCanceled reports whether err is or wraps ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// AsReleaseError reports whether err can be typed as a *ReleaseError.
func AsReleaseError(err error) (*ReleaseError, bool) {
	var re *ReleaseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// AsProcessError reports whether err can be typed as a *ProcessError.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsConfigError reports whether err can be typed as a *ConfigError.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
