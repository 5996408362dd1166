package hooks

import (
	"encoding/json"
	"fmt"
)

// EncodeToHookInput creates a hook activity input envelope from a hook event
// for serialization and transport across the Temporal workflow/activity
// boundary: Publish is called from deterministic workflow code, but the
// actual delivery to subscribers (which may do I/O) must happen in an
// activity, so the event is marshaled into ActivityInput and replayed there.
//
// Grounded on the teacher's hooks.EncodeToHookInput/ActivityInput envelope,
// generalized to marshal the whole event value rather than hand-rolling one
// payload struct per event type, since the new event set (spec.md §4.I) is
// large and each event is already a plain, JSON-friendly struct.
func EncodeToHookInput(evt Event) (*ActivityInput, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("hooks: encode event %s: %w", evt.Type(), err)
	}
	return &ActivityInput{
		Type:     evt.Type(),
		RunID:    evt.RunID(),
		ThreadID: evt.ThreadID(),
		Payload:  payload,
	}, nil
}

// eventFactories maps an EventType to a constructor returning a zero-value
// pointer suitable for json.Unmarshal.
var eventFactories = map[EventType]func() Event{
	EventAgentStart:           func() Event { return &AgentStartEvent{} },
	EventAgentEnd:             func() Event { return &AgentEndEvent{} },
	EventMessageStart:         func() Event { return &MessageStartEvent{} },
	EventMessageUpdate:        func() Event { return &MessageUpdateEvent{} },
	EventMessageEnd:           func() Event { return &MessageEndEvent{} },
	EventToolInputStart:       func() Event { return &ToolInputStartEvent{} },
	EventToolInputUpdate:      func() Event { return &ToolInputUpdateEvent{} },
	EventToolInputEnd:         func() Event { return &ToolInputEndEvent{} },
	EventToolApprovalRequired: func() Event { return &ToolApprovalRequiredEvent{} },
	EventToolResult:           func() Event { return &ToolResultEvent{} },
	EventShellOutput:          func() Event { return &ShellOutputEvent{} },
	EventInfo:                 func() Event { return &InfoEvent{} },
	EventError:                func() Event { return &ErrorEvent{} },
	EventModeChanged:          func() Event { return &ModeChangedEvent{} },
	EventModelChanged:         func() Event { return &ModelChangedEvent{} },
	EventThreadChanged:        func() Event { return &ThreadChangedEvent{} },
	EventThreadCreated:        func() Event { return &ThreadCreatedEvent{} },
	EventUsageUpdate:          func() Event { return &UsageUpdateEvent{} },
	EventOMObservationStart:   func() Event { return &OMObservationStartEvent{} },
	EventOMObservationEnd:     func() Event { return &OMObservationEndEvent{} },
	EventOMObservationFailed:  func() Event { return &OMObservationFailedEvent{} },
	EventOMReflectionStart:    func() Event { return &OMReflectionStartEvent{} },
	EventOMReflectionEnd:      func() Event { return &OMReflectionEndEvent{} },
	EventFollowUpQueued:       func() Event { return &FollowUpQueuedEvent{} },
	EventWorkspaceFileChanged: func() Event { return &WorkspaceFileChangedEvent{} },
	EventWorkspaceSyncFailed:  func() Event { return &WorkspaceSyncFailedEvent{} },
	EventSubagentStarted:      func() Event { return &SubagentStartedEvent{} },
	EventSubagentProgress:     func() Event { return &SubagentProgressEvent{} },
	EventSubagentFinished:     func() Event { return &SubagentFinishedEvent{} },
	EventTaskUpdated:          func() Event { return &TaskUpdatedEvent{} },
	EventAskQuestion:          func() Event { return &AskQuestionEvent{} },
	EventSandboxAccessRequest: func() Event { return &SandboxAccessRequestEvent{} },
	EventPlanApprovalRequired: func() Event { return &PlanApprovalRequiredEvent{} },
	EventPlanApproved:         func() Event { return &PlanApprovedEvent{} },
}

// DecodeHookInput reverses EncodeToHookInput, reconstructing the concrete
// typed Event from its envelope.
func DecodeHookInput(in *ActivityInput) (Event, error) {
	factory, ok := eventFactories[in.Type]
	if !ok {
		return nil, fmt.Errorf("hooks: unknown event type %q", in.Type)
	}
	evt := factory()
	if err := json.Unmarshal(in.Payload, evt); err != nil {
		return nil, fmt.Errorf("hooks: decode event %s: %w", in.Type, err)
	}
	return evt, nil
}
