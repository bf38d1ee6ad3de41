package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode classifies a pipeline failure.
type ErrorCode string

const (
	// CodeConfiguration marks invalid chain or stage configuration. Fatal at
	// construction time, never retried.
	CodeConfiguration ErrorCode = "configuration"
	// CodeSourceAccess marks an origin read failure, recoverable through
	// best-effort mode when enabled.
	CodeSourceAccess ErrorCode = "source_access"
	// CodeTransform marks a stage or transformer failure mid-pipeline. It
	// aborts the request; no partial result is returned.
	CodeTransform ErrorCode = "transform"
)

// ErrEmptyChain is returned when a chain is built from zero stages.
var ErrEmptyChain = errors.New("a chain must be built from at least one stage")

// Error attaches a code and the failing stage to an underlying error.
type Error struct {
	Code  ErrorCode
	Stage string
	Err   error
}

func (e Error) Error() string {
	msg := string(e.Code)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("stage %s: %s", e.Stage, msg)
	}
	return msg
}

func (e Error) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err as a fatal configuration failure.
func NewConfigurationError(err error) error {
	return Error{Code: CodeConfiguration, Err: err}
}

// NewSourceAccessError wraps err as an origin read failure.
func NewSourceAccessError(err error) error {
	return Error{Code: CodeSourceAccess, Err: err}
}

// NewTransformError wraps err as a mid-pipeline stage failure.
func NewTransformError(stage string, err error) error {
	return Error{Code: CodeTransform, Stage: stage, Err: err}
}

// Classify maps an error to its code. Untyped filesystem failures count as
// source access; anything else that escaped a stage is a transform failure.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var e Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrClosed) {
		return CodeSourceAccess
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"):
		return CodeSourceAccess
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "unavailable"):
		return CodeSourceAccess
	default:
		return CodeTransform
	}
}
