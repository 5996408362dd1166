package hooks

import "encoding/json"

// ActivityInput describes a hook event emitted from workflow code and
// published by the hook activity. Payload contains the event-specific
// fields encoded as JSON (see EncodeToHookInput/DecodeHookInput).
type ActivityInput struct {
	// Type identifies the hook event variant (for example, EventToolResult).
	Type EventType
	// RunID identifies the run that owns this event.
	RunID string
	// ThreadID identifies the conversation thread that owns this event.
	ThreadID string
	// Payload holds event-specific fields encoded as JSON.
	Payload json.RawMessage
}
