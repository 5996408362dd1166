// Package memory implements the Observational Memory Engine (spec.md §4.G):
// the Observer/Reflector pipeline that compresses a run's long-running
// message history into a bounded "observations" document, plus the durable
// event-log contract that backs it.
//
// Grounded on the teacher's agents/runtime/memory.Store contract (append-only
// event log keyed by agent/run, Snapshot/Event/EventType, Reader) for durable
// persistence, and on runtime/agent/reminder.Engine (per-run state map,
// priority-tiered bookkeeping, Engine constructed once and reused across
// runs) for the Engine's scheduling shape. The three-tier threshold/buffer/
// activation state machine and the Observer/Reflector calls are new, built
// to spec.md §4.G directly since the teacher has no compaction pipeline of
// its own.
package memory

import (
	"context"
	"time"
)

type (
	// Store persists the append-only event log backing an agent/run's
	// observational-memory history. Implementations must be thread-safe.
	// Production deployments typically use a durable backend (MongoDB,
	// DynamoDB, etc.); see features/memory/mongo for an example.
	Store interface {
		// LoadRun retrieves the snapshot for the given agent and run. Returns
		// an empty snapshot (not an error) if the run doesn't exist yet.
		LoadRun(ctx context.Context, agentID, runID string) (Snapshot, error)

		// AppendEvents appends events to the run's history. Returns an error
		// only for storage failures or connectivity issues.
		AppendEvents(ctx context.Context, agentID, runID string, events ...Event) error
	}

	// Snapshot captures the durable state of a run's memory log at a point
	// in time. Snapshots are immutable once returned by LoadRun.
	Snapshot struct {
		// AgentID identifies the agent that produced this run.
		AgentID string
		// RunID identifies the workflow run associated with this snapshot.
		RunID string
		// Events lists the chronological memory events persisted so far,
		// ordered by Timestamp ascending.
		Events []Event
		// Meta carries implementation-defined metadata (database cursors,
		// version numbers, sync tokens).
		Meta map[string]any
	}

	// Event describes a single entry persisted to the memory store.
	Event struct {
		// Type indicates the category of the event.
		Type EventType
		// Timestamp marks when the event occurred.
		Timestamp time.Time
		// Data holds the event-specific payload.
		Data any
		// Labels provides structured metadata for filtering or policy
		// decisions, e.g. {"cycle_id": "..."}.
		Labels map[string]string
	}

	// Reader provides read-only access to a snapshot.
	Reader interface {
		// Events returns all events in chronological order.
		Events() []Event
		// FilterByType returns events matching the given type, preserving
		// chronological order.
		FilterByType(t EventType) []Event
		// Latest returns the most recent event of the given type.
		Latest(t EventType) (Event, bool)
	}

	// Annotation represents planner-supplied metadata appended during
	// execution, typically persisted as EventAnnotation entries.
	Annotation struct {
		Message string
		Labels  map[string]string
	}
)

// EventType enumerates persisted memory event categories.
type EventType string

const (
	// EventUserMessage records an end-user utterance or input message.
	EventUserMessage EventType = "user_message"
	// EventAssistantMessage records an assistant response or output message.
	EventAssistantMessage EventType = "assistant_message"
	// EventToolCall records a tool invocation request.
	EventToolCall EventType = "tool_call"
	// EventToolResult records the outcome of a tool invocation.
	EventToolResult EventType = "tool_result"
	// EventPlannerNote records planner-generated notes or reasoning steps.
	EventPlannerNote EventType = "planner_note"
	// EventAnnotation records arbitrary annotations injected by policy
	// engines, hooks, or external systems.
	EventAnnotation EventType = "annotation"

	// EventOMObservation records a completed Observer cycle: Data carries the
	// resulting ObservationsText, CurrentTask, and SuggestedResponse; Labels
	// carries {"cycle_id": ...}.
	EventOMObservation EventType = "om_observation"
	// EventOMReflection records a completed Reflector cycle: Data carries the
	// recompressed observations text; Labels carries
	// {"cycle_id": ..., "generation_count": ...}.
	EventOMReflection EventType = "om_reflection"
)

// reader is the default Reader implementation, wrapping a Snapshot's events.
type reader struct {
	events []Event
}

// NewReader wraps a Snapshot for convenient read access.
func NewReader(snap Snapshot) Reader {
	return &reader{events: snap.Events}
}

func (r *reader) Events() []Event { return r.events }

func (r *reader) FilterByType(t EventType) []Event {
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *reader) Latest(t EventType) (Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}
