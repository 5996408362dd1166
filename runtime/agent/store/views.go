package store

import (
	"github.com/agentgrove/corert/runtime/agent/convo"
	"github.com/agentgrove/corert/runtime/agent/model"
)

// View selects one of the four projections a message set can be rendered as
// (spec.md §4.A).
type View string

const (
	// ViewCanonical is the raw convo.Message/Part shape as stored.
	ViewCanonical View = "canonical"
	// ViewLegacyV1 is a flattened, backward-compatible shape for callers that
	// predate the typed-part model (text concatenated, tool calls summarized).
	ViewLegacyV1 View = "v1"
	// ViewUI merges tool-call and tool-result bookkeeping per message id so a
	// renderer sees one coherent message per id rather than raw deltas.
	ViewUI View = "ui"
	// ViewPrompt flattens the store into provider-ready model.Message values,
	// with system messages prepended.
	ViewPrompt View = "prompt"
)

// LegacyMessageV1 is the backward-compatible flattened shape.
type LegacyMessageV1 struct {
	ID        string
	Role      string
	Text      string
	ToolCalls []string
}

// UIMessage is the per-id merged projection used by renderers.
type UIMessage struct {
	ID        string
	Role      convo.Role
	Parts     []convo.Part
	CreatedAt int64
}

// Render projects msgs into the requested view.
func Render(msgs []*convo.Message, view View) any {
	switch view {
	case ViewLegacyV1:
		return renderV1(msgs)
	case ViewUI:
		return renderUI(msgs)
	case ViewPrompt:
		return nil // use PromptMessages for the typed projection
	default:
		return msgs
	}
}

func renderV1(msgs []*convo.Message) []LegacyMessageV1 {
	out := make([]LegacyMessageV1, 0, len(msgs))
	for _, m := range msgs {
		v1 := LegacyMessageV1{ID: m.ID, Role: string(m.Role)}
		for _, p := range m.Parts {
			switch t := p.(type) {
			case convo.TextPart:
				v1.Text += t.Text
			case convo.ToolCallPart:
				v1.ToolCalls = append(v1.ToolCalls, t.ToolName)
			}
		}
		out = append(out, v1)
	}
	return out
}

func renderUI(msgs []*convo.Message) []UIMessage {
	out := make([]UIMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, UIMessage{
			ID:        m.ID,
			Role:      m.Role,
			Parts:     m.Parts,
			CreatedAt: m.CreatedAt.UnixMilli(),
		})
	}
	return out
}

// PromptOptions configures provider-quirk post-processing for the prompt
// view (spec.md §4.A "post-processed for provider quirks such as collapsing
// adjacent roles for Gemini").
type PromptOptions struct {
	// CollapseAdjacentRoles merges consecutive same-role messages into one,
	// as required by providers (e.g. Gemini) that reject back-to-back
	// same-role turns.
	CollapseAdjacentRoles bool
}

// PromptMessages flattens the store's visible messages (memory ∪ input ∪
// response ∪ context, in CreatedAt order) into provider-ready model.Message
// values, with tagged then untagged system messages prepended.
func (s *Store) PromptMessages(opts PromptOptions) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Message, 0, len(s.messages)+len(s.systemTagged)+len(s.systemUntagged))
	for _, tag := range sortedTagKeys(s.systemTagged) {
		out = append(out, toModelMessage(s.systemTagged[tag]))
	}
	for _, m := range s.systemUntagged {
		out = append(out, toModelMessage(m))
	}
	for _, m := range s.messages {
		out = append(out, toModelMessage(m))
	}
	if opts.CollapseAdjacentRoles {
		out = collapseAdjacentRoles(out)
	}
	return out
}

func sortedTagKeys(m map[string]*convo.Message) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// stable, deterministic order
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func toModelMessage(m *convo.Message) *model.Message {
	out := &model.Message{Role: model.ConversationRole(m.Role)}
	for _, p := range m.Parts {
		switch v := p.(type) {
		case convo.TextPart:
			out.Parts = append(out.Parts, model.TextPart{Text: v.Text})
		case convo.ThinkingPart:
			out.Parts = append(out.Parts, model.ThinkingPart{Text: v.Text})
		case convo.ToolCallPart:
			out.Parts = append(out.Parts, model.ToolUsePart{ID: v.CallID, Name: v.ToolName, Input: v.Arguments})
			if v.State == convo.ToolCallStateResult {
				out.Parts = append(out.Parts, model.ToolResultPart{ToolUseID: v.CallID, Content: v.Result, IsError: v.IsError})
			}
		case convo.ImagePart:
			out.Parts = append(out.Parts, model.ImagePart{Bytes: v.Data})
		}
	}
	return out
}

// collapseAdjacentRoles merges consecutive same-role messages by
// concatenating their parts, matching the Gemini provider quirk documented
// in spec.md §4.A.
func collapseAdjacentRoles(msgs []*model.Message) []*model.Message {
	if len(msgs) == 0 {
		return msgs
	}
	out := make([]*model.Message, 0, len(msgs))
	out = append(out, msgs[0])
	for _, m := range msgs[1:] {
		last := out[len(out)-1]
		if last.Role == m.Role {
			last.Parts = append(last.Parts, m.Parts...)
			continue
		}
		out = append(out, m)
	}
	return out
}
