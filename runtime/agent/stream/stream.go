// Package stream provides the transport-facing bridge between the internal
// hooks.Bus and an external client connection (SSE, WebSocket, Pulse). A
// Sink forwards a filtered, ordered subset of hooks.Event values to a single
// connection; the Subscriber in this package implements hooks.Subscriber and
// performs the filtering (spec.md §4.I: "Typed event fan-out to subscribers
// (UI, tracing) with ordering guarantees per run").
//
// Unlike the teacher's original stream package, there is no separate wire
// event taxonomy here: hooks.Event already carries typed, per-event payloads
// suitable for JSON marshaling, so a Sink forwards hooks.Event values
// directly rather than translating into a second, parallel event set.
package stream

import "context"

// Sink delivers hook events to a client-facing transport. Implementations
// must be safe for concurrent Send calls, since a run may fan out to a Sink
// from multiple goroutines (e.g. concurrent tool calls emitting
// ShellOutputEvent).
type Sink interface {
	// Send publishes an event to the sink's underlying transport. An error
	// return marks the sink as failed for subsequent events in this run,
	// per the Subscriber's isolation semantics (spec.md §4.I).
	Send(ctx context.Context, event any) error
	// Close releases resources owned by the sink. Idempotent.
	Close(ctx context.Context) error
}

// Profile selects which event types a Subscriber forwards to its Sink,
// letting a connection opt into only the events it renders (spec.md §4.I
// lists the full taxonomy; most UIs want a subset).
type Profile struct {
	// Types, when non-empty, restricts forwarding to these event types. An
	// empty set forwards every event.
	Types map[string]struct{}
}

// DefaultProfile forwards the event types a typical chat UI renders:
// messages, tool lifecycle, approvals, and errors.
func DefaultProfile() Profile {
	return Profile{Types: toSet(
		"agent_start", "agent_end",
		"message_start", "message_update", "message_end",
		"tool_input_start", "tool_input_update", "tool_input_end",
		"tool_approval_required", "tool_result",
		"error", "info",
		"mode_changed", "model_changed", "thread_changed", "thread_created",
		"usage_update",
		"ask_question", "sandbox_access_request",
		"plan_approval_required", "plan_approved",
		"task_updated", "follow_up_queued",
	)}
}

// AllEventsProfile forwards every event, useful for debug/trace consumers.
func AllEventsProfile() Profile {
	return Profile{}
}

func toSet(types ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(types))
	for _, t := range types {
		out[t] = struct{}{}
	}
	return out
}

func (p Profile) allows(t string) bool {
	if len(p.Types) == 0 {
		return true
	}
	_, ok := p.Types[t]
	return ok
}
