// Package convo defines the canonical conversation data model owned by the
// Message Store (spec.md §3, §4.A): messages, their typed parts, threads, and
// the observational-memory record shape. It is deliberately distinct from
// runtime/agent/model, which describes the wire-level request/response shape
// sent to and received from a model provider — convo.Message is the
// durable, mergeable record; model.Message is a transient per-call
// projection built from it by the prompt view (see runtime/agent/store).
package convo

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Message.
type Role string

const (
	// RoleSystem marks a system instruction message.
	RoleSystem Role = "system"
	// RoleUser marks a message originated by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message originated by the model.
	RoleAssistant Role = "assistant"
	// RoleTool marks a message carrying tool call/result bookkeeping only.
	RoleTool Role = "tool"
)

// SourceBucket partitions messages by provenance (spec.md §3 invariant 5).
// Every stored message belongs to exactly one bucket.
type SourceBucket string

const (
	// SourceMemory marks messages recalled from persisted memory.
	SourceMemory SourceBucket = "memory"
	// SourceInput marks messages supplied as the current turn's input.
	SourceInput SourceBucket = "input"
	// SourceResponse marks messages produced by the assistant this run.
	SourceResponse SourceBucket = "response"
	// SourceContext marks messages injected as contextual scaffolding
	// (system prompts, workspace instructions, reminders).
	SourceContext SourceBucket = "context"
)

// ToolCallState tracks the lifecycle of a tool-call part.
type ToolCallState string

const (
	// ToolCallStatePartialInput indicates the model is still streaming the
	// tool-call's input JSON.
	ToolCallStatePartialInput ToolCallState = "partial-input"
	// ToolCallStateInputReady indicates the tool-call's input JSON parsed
	// successfully but no result has arrived yet.
	ToolCallStateInputReady ToolCallState = "input-ready"
	// ToolCallStateResult indicates a matching tool-result has been merged
	// into this part (spec.md §3 invariant 2).
	ToolCallStateResult ToolCallState = "result"
)

type (
	// Part is implemented by every concrete content fragment a Message may
	// carry. Implementations are listed in spec.md §3.
	Part interface {
		isPart()
		// PartMeta returns the part's optional metadata (sealedAt, provider
		// metadata, ...). Parts without metadata return a nil map.
		PartMeta() map[string]any
	}

	base struct {
		Meta map[string]any
	}

	// TextPart is a plain text fragment.
	TextPart struct {
		base
		Text string
	}

	// ThinkingPart is a fragment of the model's private reasoning.
	ThinkingPart struct {
		base
		Text string
	}

	// ToolCallPart declares or updates a tool invocation requested by the
	// assistant. ArgsTextBuffer accumulates the raw streamed argument JSON
	// before it parses; Arguments holds the structured, parsed value once
	// available. Result/IsError are populated when the matching tool-result
	// is merged in (spec.md §3 invariant 2): the part is updated in place,
	// never duplicated.
	ToolCallPart struct {
		base
		CallID         string
		ToolName       string
		Arguments      any
		State          ToolCallState
		ArgsTextBuffer string
		Result         any
		IsError        bool
	}

	// ToolResultPart is merged into the matching ToolCallPart by the Stream
	// Merger; it is never stored as a standalone part in the canonical model,
	// but is the shape callers use to *submit* a tool result for merging.
	ToolResultPart struct {
		base
		CallID  string
		Payload any
		IsError bool
	}

	// StepStartPart marks the model speaking again after using a tool, so a
	// renderer can draw a step boundary.
	StepStartPart struct {
		base
	}

	// OMObservationStartPart marks the start of an observational-memory
	// cycle that ingested the messages up to this point.
	OMObservationStartPart struct {
		base
		CycleID string
	}

	// OMObservationEndPart marks the successful completion of an
	// observational-memory cycle.
	OMObservationEndPart struct {
		base
		CycleID string
	}

	// OMObservationFailedPart marks a failed observational-memory cycle.
	OMObservationFailedPart struct {
		base
		CycleID string
		Reason  string
	}

	// ImagePart carries inline image bytes.
	ImagePart struct {
		base
		Data     []byte
		MimeType string
	}

	// SourcePart references an external source used for title generation or
	// citation.
	SourcePart struct {
		base
		URI   string
		Title string
	}

	// FilePart references an external file attachment.
	FilePart struct {
		base
		URI      string
		Name     string
		MimeType string
	}

	// Message is the canonical, mergeable unit of the Message Store.
	Message struct {
		// ID is a stable identifier, assigned on first insertion.
		ID string
		// Role identifies the speaker.
		Role Role
		// CreatedAt orders this message relative to all others in the store
		// (spec.md §3 invariant 4: forced strictly increasing on tie).
		CreatedAt time.Time
		// ThreadID scopes the message to a conversation.
		ThreadID string
		// ResourceID scopes the message to an owning resource.
		ResourceID string
		// Parts are totally ordered (spec.md §3 invariant 1).
		Parts []Part
		// Source records which bucket this message belongs to.
		Source SourceBucket
		// Sealed marks the message immutable beyond SealedBoundary (spec.md §3
		// invariant 3).
		Sealed bool
		// SealedBoundary is the index of the last part that was sealed (the
		// last part whose metadata carries sealedAt at seal time).
		SealedBoundary int
		// CompletionResult marks a message carrying a final structured
		// completion payload; such messages are never merge targets
		// (spec.md §4.B merge decision, condition iv).
		CompletionResult bool
		// IsTaskCompleteResult marks a message carrying a task-completion
		// signal; such messages are never merge targets (spec.md §4.B merge
		// decision, condition iv).
		IsTaskCompleteResult bool
	}
)

func (base) isPart() {}

// PartMeta implementations.
func (p TextPart) PartMeta() map[string]any                 { return p.Meta }
func (p ThinkingPart) PartMeta() map[string]any              { return p.Meta }
func (p ToolCallPart) PartMeta() map[string]any              { return p.Meta }
func (p ToolResultPart) PartMeta() map[string]any            { return p.Meta }
func (p StepStartPart) PartMeta() map[string]any             { return p.Meta }
func (p OMObservationStartPart) PartMeta() map[string]any    { return p.Meta }
func (p OMObservationEndPart) PartMeta() map[string]any      { return p.Meta }
func (p OMObservationFailedPart) PartMeta() map[string]any   { return p.Meta }
func (p ImagePart) PartMeta() map[string]any                 { return p.Meta }
func (p SourcePart) PartMeta() map[string]any                { return p.Meta }
func (p FilePart) PartMeta() map[string]any                  { return p.Meta }

// NewID returns a fresh stable message identifier. Grounded on the teacher's
// runtime/agent/ident.go convention of UUIDs for run-scoped identifiers.
func NewID() string { return uuid.NewString() }

// IsSealedAt reports whether meta carries a sealedAt marker, used by the
// Stream Merger to locate a message's sealed boundary (spec.md §4.B).
func IsSealedAt(meta map[string]any) bool {
	if meta == nil {
		return false
	}
	_, ok := meta["sealedAt"]
	return ok
}

// ThreadMeta carries the per-thread observational-memory state
// (spec.md §3 "Thread" — metadata.mastra.om).
type ThreadMeta struct {
	CurrentTask       string
	SuggestedResponse string
	LastObservedAt    *time.Time
}

// Thread is a conversation scoped to one resource.
type Thread struct {
	ID         string
	Title      string
	ResourceID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Meta       ThreadMeta
}

// OMScope selects how an ObservationalMemoryRecord is keyed.
type OMScope string

const (
	// OMScopeResource shares one record across all of a resource's threads.
	OMScopeResource OMScope = "resource"
	// OMScopeThread keeps one record per thread.
	OMScopeThread OMScope = "thread"
)

// ObservationalMemoryRecord is the resource- or thread-scoped compaction
// state maintained by the OM engine (spec.md §3, §4.G).
type ObservationalMemoryRecord struct {
	Key               string // resource id or thread id, depending on Scope
	Scope             OMScope
	ObservationsText  string
	ObservationTokens int
	PendingTokens     int
	GenerationCount   int
	LastObservedAt    time.Time
}
