package hooks

import (
	"time"

	"github.com/agentgrove/corert/runtime/agent/convo"
)

// EventType enumerates the HarnessEvent taxonomy delivered by the Bus
// (spec.md §4.I). Every event's payload shape is fixed by its type.
type EventType string

const (
	EventAgentStart   EventType = "agent_start"
	EventAgentEnd     EventType = "agent_end"
	EventMessageStart  EventType = "message_start"
	EventMessageUpdate EventType = "message_update"
	EventMessageEnd    EventType = "message_end"

	EventToolInputStart       EventType = "tool_input_start"
	EventToolInputUpdate      EventType = "tool_input_update"
	EventToolInputEnd         EventType = "tool_input_end"
	EventToolApprovalRequired EventType = "tool_approval_required"
	EventToolResult           EventType = "tool_result"

	EventShellOutput EventType = "shell_output"
	EventInfo        EventType = "info"
	EventError       EventType = "error"

	EventModeChanged   EventType = "mode_changed"
	EventModelChanged  EventType = "model_changed"
	EventThreadChanged EventType = "thread_changed"
	EventThreadCreated EventType = "thread_created"
	EventUsageUpdate   EventType = "usage_update"

	EventOMObservationStart EventType = "om_observation_start"
	EventOMObservationEnd   EventType = "om_observation_end"
	EventOMObservationFailed EventType = "om_observation_failed"
	EventOMReflectionStart   EventType = "om_reflection_start"
	EventOMReflectionEnd     EventType = "om_reflection_end"
	EventOMReflectionFailed  EventType = "om_reflection_failed"
	EventOMBufferingStart    EventType = "om_buffering_start"
	EventOMBufferingEnd      EventType = "om_buffering_end"
	EventOMBufferingFailed   EventType = "om_buffering_failed"
	EventOMActivation        EventType = "om_activation"
	EventOMStatus            EventType = "om_status"

	EventFollowUpQueued EventType = "follow_up_queued"

	EventWorkspaceFileChanged EventType = "workspace_file_changed"
	EventWorkspaceSyncFailed  EventType = "workspace_sync_failed"

	EventSubagentStarted  EventType = "subagent_started"
	EventSubagentProgress EventType = "subagent_progress"
	EventSubagentFinished EventType = "subagent_finished"

	EventTaskUpdated         EventType = "task_updated"
	EventAskQuestion         EventType = "ask_question"
	EventSandboxAccessRequest EventType = "sandbox_access_request"
	EventPlanApprovalRequired EventType = "plan_approval_required"
	EventPlanApproved         EventType = "plan_approved"
)

// Event is the interface every published event implements (spec.md §4.I).
// The runtime publishes events through the Bus; subscribers type-switch on
// concrete event structs to read type-specific fields.
type Event interface {
	Type() EventType
	RunID() string
	ThreadID() string
	Timestamp() int64
}

// Base carries the fields common to every event. It is embedded (by its
// exported type name, so the field is settable from other packages) in every
// concrete event struct below.
type Base struct {
	EventType EventType
	Run       string
	Thread    string
	At        int64
}

func (b Base) Type() EventType  { return b.EventType }
func (b Base) RunID() string    { return b.Run }
func (b Base) ThreadID() string { return b.Thread }
func (b Base) Timestamp() int64 { return b.At }

// NewBase constructs the embeddable Base field for a concrete event type,
// stamping the current time. Callers outside this package (the agent loop,
// registry, memory) use it to build typed events without duplicating
// timestamp logic, e.g. hooks.ToolResultEvent{Base: hooks.NewBase(...), ...}.
func NewBase(t EventType, runID, threadID string) Base {
	return Base{EventType: t, Run: runID, Thread: threadID, At: time.Now().UnixMilli()}
}

type (
	// AgentStartEvent fires when a run begins execution.
	AgentStartEvent struct {
		Base
		AgentName string
	}

	// AgentEndEvent fires after a run finishes, successfully or not.
	AgentEndEvent struct {
		Base
		Status string // "success" | "failed" | "canceled"
		Error  string
	}

	// MessageStartEvent announces a new assistant message has begun.
	MessageStartEvent struct {
		Base
		MessageID string
	}

	// MessageUpdateEvent carries an incremental delta for an in-flight
	// message: a new or updated part.
	MessageUpdateEvent struct {
		Base
		MessageID string
		Part      convo.Part
	}

	// MessageEndEvent announces a message is complete.
	MessageEndEvent struct {
		Base
		MessageID string
	}

	// ToolInputStartEvent fires when a tool-call part begins streaming.
	ToolInputStartEvent struct {
		Base
		CallID   string
		ToolName string
	}

	// ToolInputUpdateEvent carries a partial-input delta for a streaming
	// tool call.
	ToolInputUpdateEvent struct {
		Base
		CallID      string
		ArgsDelta   string
		PartialArgs any
	}

	// ToolInputEndEvent fires once a tool call's input JSON has fully
	// parsed.
	ToolInputEndEvent struct {
		Base
		CallID    string
		ToolName  string
		Arguments any
	}

	// ToolApprovalRequiredEvent suspends a run pending a policy decision
	// (spec.md §4.C, §4.H).
	ToolApprovalRequiredEvent struct {
		Base
		CallID   string
		ToolName string
		Category string
		Input    any
	}

	// ToolResultEvent fires when a tool call completes.
	ToolResultEvent struct {
		Base
		CallID   string
		ToolName string
		Result   any
		IsError  bool
		Duration time.Duration
	}

	// ShellOutputEvent streams raw output from a shell/execute-category
	// tool as it runs.
	ShellOutputEvent struct {
		Base
		CallID string
		Chunk  string
		Stream string // "stdout" | "stderr"
	}

	// InfoEvent carries an informational message for the UI.
	InfoEvent struct {
		Base
		Message string
	}

	// ErrorEvent carries a terminal or recoverable error for the UI.
	ErrorEvent struct {
		Base
		Message   string
		Retryable bool
	}

	// ModeChangedEvent fires when the agent's operating mode changes.
	ModeChangedEvent struct {
		Base
		Mode string
	}

	// ModelChangedEvent fires when the active model provider/model changes.
	ModelChangedEvent struct {
		Base
		Provider string
		Model    string
	}

	// ThreadChangedEvent fires when the active thread switches.
	ThreadChangedEvent struct {
		Base
		PreviousThreadID string
	}

	// ThreadCreatedEvent fires when a new thread is created.
	ThreadCreatedEvent struct {
		Base
		Title string
	}

	// UsageUpdateEvent reports cumulative token usage for the run.
	UsageUpdateEvent struct {
		Base
		InputTokens  int
		OutputTokens int
	}

	// OMObservationStartEvent fires when an observational-memory cycle
	// begins (spec.md §4.G).
	OMObservationStartEvent struct {
		Base
		CycleID string
		Scope   string
	}

	// OMObservationEndEvent fires when an observational-memory cycle
	// completes successfully.
	OMObservationEndEvent struct {
		Base
		CycleID           string
		ObservationTokens int
	}

	// OMObservationFailedEvent fires when an observational-memory cycle
	// fails.
	OMObservationFailedEvent struct {
		Base
		CycleID string
		Reason  string
	}

	// OMReflectionStartEvent fires when the reflection tier begins.
	OMReflectionStartEvent struct {
		Base
		CycleID string
	}

	// OMReflectionEndEvent fires when the reflection tier completes.
	OMReflectionEndEvent struct {
		Base
		CycleID           string
		ObservationTokens int
		GenerationCount   int
	}

	// OMReflectionFailedEvent fires when the reflection tier fails.
	OMReflectionFailedEvent struct {
		Base
		CycleID string
		Reason  string
	}

	// OMBufferingStartEvent fires when an asynchronous observation batch
	// begins accumulating in the buffer (spec.md §4.G "bufferTokens").
	OMBufferingStartEvent struct {
		Base
		CycleID string
		Scope   string
	}

	// OMBufferingEndEvent fires when a buffered batch finishes observing.
	OMBufferingEndEvent struct {
		Base
		CycleID      string
		BufferTokens int
	}

	// OMBufferingFailedEvent fires when a buffered batch fails to observe.
	OMBufferingFailedEvent struct {
		Base
		CycleID string
		Reason  string
	}

	// OMActivationEvent fires when a fraction of the buffered payload is
	// spliced into live context (spec.md §4.G "bufferActivation").
	OMActivationEvent struct {
		Base
		CycleID          string
		ActivatedTokens  int
		RemainingTokens  int
		ActivationFrac   float64
	}

	// OMStatusEvent is emitted periodically with the current window sizes
	// for all three OM tiers.
	OMStatusEvent struct {
		Base
		CycleID           string
		PendingTokens     int
		ObservationTokens int
		GenerationCount   int
	}

	// FollowUpQueuedEvent fires when a follow-up turn is queued (e.g. after
	// a sub-agent suggests a next action).
	FollowUpQueuedEvent struct {
		Base
		Text string
	}

	// WorkspaceFileChangedEvent fires when a workspace-scoped tool mutates
	// a file.
	WorkspaceFileChangedEvent struct {
		Base
		Path string
	}

	// WorkspaceSyncFailedEvent fires when workspace synchronization fails.
	WorkspaceSyncFailedEvent struct {
		Base
		Reason string
	}

	// SubagentStartedEvent fires when a sub-agent run is scheduled
	// (spec.md §4.E).
	SubagentStartedEvent struct {
		Base
		ChildRunID string
		AgentName  string
	}

	// SubagentProgressEvent relays a child run's progress to the parent.
	SubagentProgressEvent struct {
		Base
		ChildRunID string
		Message    string
	}

	// SubagentFinishedEvent fires when a sub-agent run completes.
	SubagentFinishedEvent struct {
		Base
		ChildRunID string
		Status     string
	}

	// TaskUpdatedEvent reports a change to a tracked task item.
	TaskUpdatedEvent struct {
		Base
		TaskID string
		Status string
	}

	// AskQuestionEvent suspends a run pending a clarifying answer from the
	// user.
	AskQuestionEvent struct {
		Base
		Question string
	}

	// SandboxAccessRequestEvent suspends a run pending sandbox/workspace
	// access approval.
	SandboxAccessRequestEvent struct {
		Base
		Resource string
	}

	// PlanApprovalRequiredEvent suspends a run pending approval of a
	// proposed plan.
	PlanApprovalRequiredEvent struct {
		Base
		PlanSummary string
	}

	// PlanApprovedEvent fires once a proposed plan has been approved.
	PlanApprovedEvent struct {
		Base
	}
)
