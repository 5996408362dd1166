package store

import (
	"encoding/json"
	"time"

	"github.com/agentgrove/corert/runtime/agent/convo"
)

// MergeOptions parameterizes a single merge attempt (spec.md §4.B).
type MergeOptions struct {
	// NetworkAppend toggles condition (vi) of the merge decision: "under
	// network-append mode, the target is not itself a memory message". The
	// source does not document when this flag should be set (spec.md §9
	// Open Question); callers set it explicitly rather than it being
	// inferred, per the recorded decision in DESIGN.md.
	NetworkAppend bool
	// Source is the bucket the incoming message is being added under.
	Source convo.SourceBucket
}

// mergeLocked decides whether incoming merges into the last stored message of
// its thread and, if so, applies the merge. Callers hold s.mu.
func (s *Store) mergeLocked(incoming *convo.Message, opts MergeOptions) *convo.Message {
	if incoming.Role != convo.RoleAssistant {
		return incoming
	}
	target := s.lastMessageLocked(incoming.ThreadID)
	if target == nil || !mergeEligible(target, incoming, opts) {
		return incoming
	}
	if target.Sealed {
		return mergeSealed(target, incoming)
	}
	mergeParts(target, incoming)
	if incoming.CreatedAt.After(target.CreatedAt) {
		target.CreatedAt = incoming.CreatedAt
	}
	return target
}

func (s *Store) lastMessageLocked(threadID string) *convo.Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ThreadID == threadID {
			return s.messages[i]
		}
	}
	return nil
}

// mergeEligible implements the merge decision of spec.md §4.B, conditions
// (i)-(iv) and (vi). Condition (v) ("the target is not sealed") is handled
// separately by mergeSealed, which is invoked instead of treating a sealed
// target as ineligible.
func mergeEligible(target, incoming *convo.Message, opts MergeOptions) bool {
	if target.Role != convo.RoleAssistant || incoming.Role != convo.RoleAssistant {
		return false
	}
	if target.ThreadID != incoming.ThreadID {
		return false
	}
	if incoming.Source == convo.SourceMemory {
		return false
	}
	if target.CompletionResult || target.IsTaskCompleteResult {
		return false
	}
	if incoming.CompletionResult || incoming.IsTaskCompleteResult {
		return false
	}
	if opts.NetworkAppend && target.Source == convo.SourceMemory {
		return false
	}
	return true
}

// mergeParts applies the anchor-map merge algorithm (spec.md §4.B steps 1-5)
// to incorporate incoming's parts into target in place.
func mergeParts(target, incoming *convo.Message) {
	lastAnchor := -1
	for i, p := range incoming.Parts {
		if callID, ok := toolInvocationCallID(p); ok {
			if idx := findToolCall(target.Parts, callID); idx >= 0 {
				updateToolCallInPlace(target.Parts[idx].(convo.ToolCallPart), p, target, idx)
				lastAnchor = idx
				continue
			}
		}
		// Step 4: inject a synthetic step-start before a text part that
		// follows a tool-invocation anchor, unless the source already has one.
		if _, isText := p.(convo.TextPart); isText && lastAnchor >= 0 {
			if _, precededByToolCall := target.Parts[lastAnchor].(convo.ToolCallPart); precededByToolCall {
				prevIsStepStart := i > 0 && isStepStart(incoming.Parts[i-1])
				if !prevIsStepStart && !(lastAnchor+1 < len(target.Parts) && isStepStart(target.Parts[lastAnchor+1])) {
					target.Parts = insertAt(target.Parts, lastAnchor+1, convo.StepStartPart{})
					lastAnchor++
				}
			}
		}
		// Step 5: refuse a content-equal duplicate within the anchor window.
		if hasDuplicateAfter(target.Parts, lastAnchor, p) {
			continue
		}
		insertPos := lastAnchor + 1
		if insertPos <= 0 {
			insertPos = len(target.Parts)
		}
		target.Parts = insertAt(target.Parts, insertPos, p)
		lastAnchor = insertPos
	}
}

func toolInvocationCallID(p convo.Part) (string, bool) {
	switch v := p.(type) {
	case convo.ToolCallPart:
		return v.CallID, true
	case convo.ToolResultPart:
		return v.CallID, true
	}
	return "", false
}

func findToolCall(parts []convo.Part, callID string) int {
	for i, p := range parts {
		if tc, ok := p.(convo.ToolCallPart); ok && tc.CallID == callID {
			return i
		}
	}
	return -1
}

func isStepStart(p convo.Part) bool {
	_, ok := p.(convo.StepStartPart)
	return ok
}

// updateToolCallInPlace merges incoming (a ToolCallPart or ToolResultPart)
// into the tool-call part already present in target at index idx
// (spec.md §3 invariant 2): state transitions to result, args are merged
// additively, providerMetadata is merged.
func updateToolCallInPlace(current convo.ToolCallPart, incoming convo.Part, target *convo.Message, idx int) {
	switch v := incoming.(type) {
	case convo.ToolCallPart:
		if v.Arguments != nil {
			current.Arguments = v.Arguments
		}
		if v.ArgsTextBuffer != "" {
			current.ArgsTextBuffer += v.ArgsTextBuffer
		}
		if v.State != "" {
			current.State = v.State
		}
		current.Meta = mergeMeta(current.Meta, v.Meta)
	case convo.ToolResultPart:
		current.State = convo.ToolCallStateResult
		current.Result = v.Payload
		current.IsError = v.IsError
		current.Meta = mergeMeta(current.Meta, v.Meta)
	}
	target.Parts[idx] = current
}

func mergeMeta(a, b map[string]any) map[string]any {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func insertAt(parts []convo.Part, pos int, p convo.Part) []convo.Part {
	if pos > len(parts) {
		pos = len(parts)
	}
	out := make([]convo.Part, 0, len(parts)+1)
	out = append(out, parts[:pos]...)
	out = append(out, p)
	out = append(out, parts[pos:]...)
	return out
}

// hasDuplicateAfter reports whether a content-equal part to p already exists
// in parts at or after index from+1 (spec.md §4.B step 5).
func hasDuplicateAfter(parts []convo.Part, from int, p Part) bool {
	start := from + 1
	if start < 0 {
		start = 0
	}
	pj, err := json.Marshal(p)
	if err != nil {
		return false
	}
	for i := start; i < len(parts); i++ {
		qj, err := json.Marshal(parts[i])
		if err != nil {
			continue
		}
		if string(pj) == string(qj) {
			return true
		}
	}
	return false
}

// Part is a local alias used only to keep hasDuplicateAfter's signature
// readable; it is identical to convo.Part.
type Part = convo.Part

// mergeSealed implements the sealed-message protection of spec.md §4.B: the
// incoming delta is split at the sealed boundary. Parts beyond the boundary
// are re-homed to a new message with a fresh id and a timestamp strictly
// greater than the sealed message's timestamp. If every incoming part falls
// within the boundary and is content-equal to what's already stored, the
// delta is dropped as stale.
func mergeSealed(target, incoming *convo.Message) *convo.Message {
	withinLen := target.SealedBoundary + 1
	if withinLen > len(target.Parts) {
		withinLen = len(target.Parts)
	}
	if len(incoming.Parts) <= withinLen && partsEqualPrefix(target.Parts, incoming.Parts) {
		return target
	}
	var remainder []convo.Part
	if len(incoming.Parts) > withinLen {
		remainder = append([]convo.Part(nil), incoming.Parts[withinLen:]...)
	} else {
		remainder = incoming.Parts
	}
	return &convo.Message{
		ID:         convo.NewID(),
		Role:       incoming.Role,
		CreatedAt:  target.CreatedAt.Add(time.Millisecond),
		ThreadID:   incoming.ThreadID,
		ResourceID: incoming.ResourceID,
		Parts:      remainder,
		Source:     incoming.Source,
	}
}

func partsEqualPrefix(target, incoming []convo.Part) bool {
	for i, p := range incoming {
		if i >= len(target) {
			return false
		}
		pj, err1 := json.Marshal(p)
		qj, err2 := json.Marshal(target[i])
		if err1 != nil || err2 != nil || string(pj) != string(qj) {
			return false
		}
	}
	return true
}

// Seal marks msg immutable beyond its current last part index
// (spec.md §3 invariant 3, used by the OM engine's sealing step, §4.G).
func (s *Store) Seal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return
	}
	m.Sealed = true
	m.SealedBoundary = len(m.Parts) - 1
}
