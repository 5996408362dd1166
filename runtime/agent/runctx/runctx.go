// Package runctx defines RunContext, the per-run handle threaded through
// every component of the agent core: tool dispatch, the agent loop, the
// sub-agent bridge, and the observational memory engine (spec.md §3).
//
// RunContext carries identity (run/thread/resource), observability
// (Logger/Metrics/Tracer), an abort signal tools must poll or select on, and
// handles to the memory and workspace subsystems a tool or hook may need.
package runctx

import (
	"context"
	"sync"

	"github.com/agentgrove/corert/runtime/agent/telemetry"
)

// AbortSignal is a cooperative cancellation signal tool executors and the
// agent loop observe to unwind early on a user-initiated abort.
//
// Grounded on the teacher's runtime/agent/interrupt.Controller, which drains
// a Temporal signal channel and exposes a context plus blocking waiters; here
// the same shape is reduced to a plain context.Context, since only the
// in-process (non-durable) surface is needed by tool executors.
type AbortSignal struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	reason string
}

// NewAbortSignal returns a fresh, unsignaled AbortSignal derived from parent.
func NewAbortSignal(parent context.Context) *AbortSignal {
	ctx, cancel := context.WithCancelCause(parent)
	return &AbortSignal{ctx: ctx, cancel: cancel}
}

// Context returns a context.Context that is done once Abort is called.
func (a *AbortSignal) Context() context.Context { return a.ctx }

// Done returns the channel closed when Abort is called, for select statements.
func (a *AbortSignal) Done() <-chan struct{} { return a.ctx.Done() }

// Aborted reports whether Abort has already been called.
func (a *AbortSignal) Aborted() bool {
	select {
	case <-a.ctx.Done():
		return true
	default:
		return false
	}
}

// Reason returns the reason passed to Abort, if any.
func (a *AbortSignal) Reason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}

// Abort signals cancellation with a human-readable reason. Idempotent.
func (a *AbortSignal) Abort(reason string) {
	a.mu.Lock()
	if a.reason == "" {
		a.reason = reason
	}
	a.mu.Unlock()
	a.cancel(errAborted(reason))
}

type errAborted string

func (e errAborted) Error() string { return "runctx: aborted: " + string(e) }

// MemoryHandle exposes the subset of the observational-memory engine a tool
// or hook is allowed to touch during a run (spec.md §4.G).
type MemoryHandle struct {
	// ResourceID scopes resource-level recall.
	ResourceID string
	// ThreadID scopes thread-level recall.
	ThreadID string
	// Recall returns the current observations text for the given scope key,
	// or "" if none exists yet. Set by the runtime wiring the memory engine
	// into a run; nil when memory is disabled for this run.
	Recall func(ctx context.Context, key string) (string, error)
}

// WorkspaceHandle exposes filesystem/workspace-scoped operations available
// to tools that declare a workspace dependency (spec.md §4.C "workspace"
// tool source).
type WorkspaceHandle struct {
	// Root is the workspace's root directory for this run.
	Root string
}

// RunContext is the per-run handle passed to tool executors, hooks, and
// sub-agent invocations. It is constructed once per run by the agent loop
// and is safe to read concurrently; fields are not mutated after creation
// except through AbortSignal.
type RunContext struct {
	// RunID identifies this run uniquely.
	RunID string
	// ThreadID is the conversation thread this run belongs to.
	ThreadID string
	// ResourceID is the owning resource (user, tenant, ...).
	ResourceID string
	// AgentName identifies the agent configuration driving this run.
	AgentName string

	// RequestContext carries caller-supplied, opaque per-request values
	// (headers, feature flags) available to tool executors without coupling
	// them to the transport layer.
	RequestContext map[string]any

	// Logger, Metrics, Tracer are the run's observability surface.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	// Abort is signaled when the run is cancelled; tool executors should
	// select on Abort.Done() alongside their own work.
	Abort *AbortSignal

	// Memory is non-nil when observational memory recall is available to
	// tools in this run.
	Memory *MemoryHandle
	// Workspace is non-nil when a workspace is bound to this run.
	Workspace *WorkspaceHandle

	// RequireApproval overrides the policy engine's default approval
	// requirement for this run when non-nil (spec.md §4.H).
	RequireApproval *bool
}

// WithRequestValue returns a shallow copy of rc with key/value added to
// RequestContext, leaving rc unmodified.
func (rc *RunContext) WithRequestValue(key string, value any) *RunContext {
	cp := *rc
	cp.RequestContext = make(map[string]any, len(rc.RequestContext)+1)
	for k, v := range rc.RequestContext {
		cp.RequestContext[k] = v
	}
	cp.RequestContext[key] = value
	return &cp
}
