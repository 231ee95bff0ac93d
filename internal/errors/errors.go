// Package errors provides the error taxonomy and exit codes for autodev.
//
// Every failure in a run is classified into one of a small set of kinds so
// callers can decide containment: only CapabilityDenied stops the whole run;
// every other kind is contained at task granularity.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Exit codes for different error categories.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitDenied       = 3
	ExitResource     = 4
	ExitNetworkError = 5
)

// Kind classifies a run failure.
type Kind int

const (
	// KindGeneral is an unclassified failure.
	KindGeneral Kind = iota
	// KindTimeout means an invocation exceeded its wall-clock budget.
	// Fatal to the invocation; the task is left pending.
	KindTimeout
	// KindCapabilityDenied means the worker was refused a capability at
	// runtime. Indicates a misconfigured boundary; fatal to the whole run.
	KindCapabilityDenied
	// KindMaxTurnsReached means the worker ran out of its turn budget.
	// The task is deferred (recorded as skipped), not discarded.
	KindMaxTurnsReached
	// KindMalformedOutput means the worker's structured result could not be
	// recovered. Always handled locally, never propagated.
	KindMalformedOutput
	// KindResourceUnavailable means workspace creation or removal failed.
	KindResourceUnavailable
	// KindNoWorkFound is the normal idle condition, not a failure.
	KindNoWorkFound
	// KindConfig is a configuration error.
	KindConfig
)

// Error is the base error type for all autodev-specific errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error returns the error message, including the cause if present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind with an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NewTimeout creates a timeout error.
func NewTimeout(msg string) *Error {
	return &Error{Kind: KindTimeout, Message: msg}
}

// NewDenied creates a capability-denied error.
func NewDenied(msg string) *Error {
	return &Error{Kind: KindCapabilityDenied, Message: msg}
}

// NewMaxTurns creates a max-turns error.
func NewMaxTurns(msg string) *Error {
	return &Error{Kind: KindMaxTurnsReached, Message: msg}
}

// NewResource creates a resource-unavailable error.
func NewResource(msg string, cause error) *Error {
	return &Error{Kind: KindResourceUnavailable, Message: msg, Cause: cause}
}

// NewConfig creates a configuration error.
func NewConfig(msg string) *Error {
	return &Error{Kind: KindConfig, Message: msg}
}

// NoWork is the sentinel for an empty queue.
var NoWork = &Error{Kind: KindNoWorkFound, Message: "no work found"}

// KindOf returns the kind of an error, unwrapping as needed; foreign
// errors are KindGeneral.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// IsDenied checks if an error is a capability-denied error.
func IsDenied(err error) bool {
	return KindOf(err) == KindCapabilityDenied
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsMaxTurns checks if an error is a max-turns error.
func IsMaxTurns(err error) bool {
	return KindOf(err) == KindMaxTurnsReached
}

// IsNoWork checks if an error is the idle condition.
func IsNoWork(err error) bool {
	return KindOf(err) == KindNoWorkFound
}

// IsResource checks if an error is a resource-unavailable error.
func IsResource(err error) bool {
	return KindOf(err) == KindResourceUnavailable
}

// GetExitCode returns the process exit code for an error.
// If the error is not an *Error, it returns ExitGeneralError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case KindNoWorkFound:
		return ExitSuccess
	case KindConfig:
		return ExitConfigError
	case KindCapabilityDenied:
		return ExitDenied
	case KindResourceUnavailable:
		return ExitResource
	default:
		return ExitGeneralError
	}
}
