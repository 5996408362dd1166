// Package coreerr defines the stable error taxonomy surfaced by the agent
// runtime core: user errors, system errors, tool errors, cancellation,
// validation tripwires, thread locks, and retryable transport failures.
//
// Tool-level failures never reach this package directly; the dispatch layer
// converts executor panics/errors into tool-result parts with IsError set
// (see runtime/agent/registry) rather than propagating a CoreError.
package coreerr

import (
	"errors"
	"fmt"
)

// Domain classifies the subsystem that raised a CoreError.
type Domain string

const (
	// DomainUser marks errors caused by invalid caller input.
	DomainUser Domain = "user"
	// DomainSystem marks errors caused by internal/storage/adapter failures.
	DomainSystem Domain = "system"
	// DomainCancellation marks errors caused by a user-initiated abort.
	DomainCancellation Domain = "cancellation"
	// DomainTripwire marks errors raised by input/output processors.
	DomainTripwire Domain = "tripwire"
	// DomainThreadLock marks thread-lock contention errors.
	DomainThreadLock Domain = "thread_lock"
	// DomainTransport marks retryable transport-level failures.
	DomainTransport Domain = "transport"
)

// CoreError is the stable, UI-renderable error shape the core surfaces to
// callers. It carries a stable ID, a Domain classification, and an optional
// Hint string the UI may render verbatim (the hint itself is not part of the
// error contract, per spec.md §7).
type CoreError struct {
	// ID is a stable, dash-separated identifier suitable for log correlation
	// (for example "invalid-message-content", "thread-lock-held").
	ID string
	// Domain classifies which error taxonomy bucket this error belongs to.
	Domain Domain
	// Message is a human-readable description of the failure.
	Message string
	// Hint is a UI-facing suggestion (for example "Use /new").
	Hint string
	// Retryable reports whether the caller may retry without changing the request.
	Retryable bool
	// RetryDelay suggests how long to wait before retrying, when Retryable.
	RetryDelaySeconds int

	cause error
}

func (e *CoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Domain, e.ID, e.Message)
	}
	return fmt.Sprintf("%s[%s]", e.Domain, e.ID)
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/As traverse it.
func (e *CoreError) Unwrap() error { return e.cause }

// New constructs a CoreError with the given domain, stable id, and message.
func New(domain Domain, id, message string) *CoreError {
	return &CoreError{Domain: domain, ID: id, Message: message}
}

// Wrap constructs a CoreError that chains cause.
func Wrap(domain Domain, id, message string, cause error) *CoreError {
	return &CoreError{Domain: domain, ID: id, Message: message, cause: cause}
}

// WithHint returns a copy of e with Hint set.
func (e *CoreError) WithHint(hint string) *CoreError {
	cp := *e
	cp.Hint = hint
	return &cp
}

// WithRetry returns a copy of e marked retryable with the given delay.
func (e *CoreError) WithRetry(delaySeconds int) *CoreError {
	cp := *e
	cp.Retryable = true
	cp.RetryDelaySeconds = delaySeconds
	return &cp
}

// Sentinel user errors (spec.md §7 "User errors").
var (
	// ErrInvalidMessageContent is returned when a message carries neither
	// content nor parts (Message Store §4.A failure mode).
	ErrInvalidMessageContent = New(DomainUser, "invalid-message-content",
		"message must carry content or parts").WithHint("Use /new")

	// ErrUnknownCommand indicates the caller issued an unrecognized command.
	ErrUnknownCommand = New(DomainUser, "unknown-command", "unknown command")

	// ErrMissingAPIKey indicates the configured model provider has no
	// credentials available.
	ErrMissingAPIKey = New(DomainUser, "missing-api-key", "missing provider API key").WithHint("Use /login")
)

// Sentinel system errors (spec.md §7 "System errors").
var (
	// ErrToolNameCollision indicates two tools normalized to the same name
	// (Tool Registry §4.C).
	ErrToolNameCollision = New(DomainSystem, "tool-name-collision", "normalized tool name collision")

	// ErrStorageFailure wraps a failure from the underlying message/thread/OM store.
	ErrStorageFailure = New(DomainSystem, "storage-failure", "storage operation failed")

	// ErrAdapterProtocolViolation indicates the LLM adapter emitted a chunk
	// sequence the runtime could not interpret.
	ErrAdapterProtocolViolation = New(DomainSystem, "adapter-protocol-violation", "adapter protocol violation")
)

// ErrInterrupted is the synthetic tool-result error text used when a
// user-initiated abort cancels in-flight tool calls (spec.md §4.C, §5).
const ErrInterrupted = "Interrupted"

// ThreadLockError indicates a thread is locked by another process.
//
// Grounded on spec.md §5 "Thread locks (file-based, carrying the owner
// pid)...a conflicting switch_thread raises ThreadLockError".
type ThreadLockError struct {
	ThreadID string
	OwnerPID int
}

func (e *ThreadLockError) Error() string {
	return fmt.Sprintf("thread %q is locked by pid %d", e.ThreadID, e.OwnerPID)
}

// AsThreadLockError returns the first ThreadLockError in err's chain, if any.
func AsThreadLockError(err error) (*ThreadLockError, bool) {
	var tle *ThreadLockError
	if errors.As(err, &tle) {
		return tle, true
	}
	return nil, false
}

// Tripwire is raised by input/output processors to halt the current step
// (spec.md §7 "Validation tripwires").
type Tripwire struct {
	Reason     string
	Retry      bool
	Metadata   map[string]any
	ProcessorID string
}

func (e *Tripwire) Error() string {
	return fmt.Sprintf("tripwire[%s]: %s", e.ProcessorID, e.Reason)
}

// AsTripwire returns the first Tripwire in err's chain, if any.
func AsTripwire(err error) (*Tripwire, bool) {
	var tw *Tripwire
	if errors.As(err, &tw) {
		return tw, true
	}
	return nil, false
}
