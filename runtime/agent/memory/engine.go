package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentgrove/corert/runtime/agent/convo"
	"github.com/agentgrove/corert/runtime/agent/hooks"
	"github.com/agentgrove/corert/runtime/agent/model"
	"github.com/agentgrove/corert/runtime/agent/runctx"
	"github.com/agentgrove/corert/runtime/agent/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// charsPerToken approximates token count from rune length, grounded on the
// CharsPerToken=4 heuristic used elsewhere in the example corpus for
// provider-agnostic token budgeting.
const charsPerToken = 4

// TierConfig configures the threshold/buffer/activation bookkeeping for one
// OM tier (spec.md §4.G "Thresholds").
type TierConfig struct {
	// TriggerTokens is the token count that triggers this tier's cycle
	// (observation.messageTokens default 30000, reflection.observationTokens
	// default 40000).
	TriggerTokens int

	// BufferTokens, when > 0, is an absolute count of new traffic after
	// which an asynchronous cycle runs and accumulates in the buffer.
	BufferTokens int
	// BufferFraction, used when BufferTokens is 0, expresses BufferTokens
	// as a fraction of TriggerTokens.
	BufferFraction float64

	// BufferActivation is the fraction in [0,1] of the buffered payload
	// spliced into live context when the trigger fires. The remainder is
	// held in reserve for the next cycle.
	BufferActivation float64

	// BlockAfter is either a multiplier in (1,2) applied to TriggerTokens,
	// or an absolute token count (>=2, and > TriggerTokens). Zero selects
	// the spec default: 1.2x the trigger when buffering is configured,
	// or the trigger itself otherwise.
	BlockAfter float64
}

// bufferTokens resolves the configured buffer size in tokens.
func (c TierConfig) bufferTokens() int {
	if c.BufferTokens > 0 {
		return c.BufferTokens
	}
	if c.BufferFraction > 0 {
		return int(c.BufferFraction * float64(c.TriggerTokens))
	}
	return 0
}

// blockAfterTokens resolves BlockAfter to an absolute token count.
func (c TierConfig) blockAfterTokens() int {
	buffering := c.bufferTokens() > 0
	switch {
	case c.BlockAfter == 0 && buffering:
		return int(1.2 * float64(c.TriggerTokens))
	case c.BlockAfter == 0:
		return c.TriggerTokens
	case c.BlockAfter > 1 && c.BlockAfter < 2:
		return int(c.BlockAfter * float64(c.TriggerTokens))
	default: // >= 2: absolute count
		return int(c.BlockAfter)
	}
}

// Config configures one Engine instance (spec.md §4.G).
type Config struct {
	// Scope selects resource-wide or per-thread OM records.
	Scope convo.OMScope
	// ShareTokenBudget merges the message and observation tiers into one
	// combined trigger (spec.md §4.G "Shared-budget mode").
	ShareTokenBudget bool

	Observation TierConfig
	Reflection  TierConfig

	// MaxTokensPerBatch caps a single Observer call; oversized batches are
	// chunked and run in parallel (spec.md §4.G "Observer call").
	MaxTokensPerBatch int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Scope: convo.OMScopeThread,
		Observation: TierConfig{
			TriggerTokens: 30000,
		},
		Reflection: TierConfig{
			TriggerTokens: 40000,
		},
		MaxTokensPerBatch: 8000,
	}
}

// ObserverResult is what the Observer agent returns for one batch (spec.md
// §4.G "Observer call").
type ObserverResult struct {
	ObservationsText  string `json:"observations_text"`
	CurrentTask       string `json:"current_task"`
	SuggestedResponse string `json:"suggested_response"`
}

// bufferState tracks one scope key's async-buffering bookkeeping for one
// tier.
type bufferState struct {
	pendingSinceFlush int
	text              string
}

// Engine schedules and runs Observer/Reflector cycles (spec.md §4.G). One
// Engine instance is shared across runs of a resource/thread, mirroring the
// teacher's runtime/agent/reminder.Engine (a single long-lived Engine
// tracking per-key state across calls).
type Engine struct {
	cfg      Config
	observer model.Client
	reflector model.Client
	durable  Store
	bus      hooks.Bus

	mu      sync.Mutex
	records map[string]*convo.ObservationalMemoryRecord
	obsBuf  map[string]*bufferState
	refBuf  map[string]*bufferState
}

// Options configures a new Engine.
type Options struct {
	Config    Config
	Observer  model.Client
	Reflector model.Client
	Durable   Store
	Bus       hooks.Bus
}

// NewEngine constructs an Engine. Observer and Reflector may be the same
// model.Client; Durable may be nil to keep OM records in-memory only.
func NewEngine(opts Options) *Engine {
	return &Engine{
		cfg:       opts.Config,
		observer:  opts.Observer,
		reflector: opts.Reflector,
		durable:   opts.Durable,
		bus:       opts.Bus,
		records:   make(map[string]*convo.ObservationalMemoryRecord),
		obsBuf:    make(map[string]*bufferState),
		refBuf:    make(map[string]*bufferState),
	}
}

func (e *Engine) scopeKey(rc *runctx.RunContext) string {
	if e.cfg.Scope == convo.OMScopeResource {
		return "resource:" + rc.ResourceID
	}
	return "thread:" + rc.ThreadID
}

func (e *Engine) recordLocked(key string) *convo.ObservationalMemoryRecord {
	rec, ok := e.records[key]
	if !ok {
		rec = &convo.ObservationalMemoryRecord{Key: key, Scope: e.cfg.Scope}
		e.records[key] = rec
	}
	return rec
}

// estimateTokens approximates a message's token footprint, grounded on the
// ~4-characters-per-token heuristic used across the corpus for
// provider-agnostic budgeting (no tokenizer dependency required).
func estimateTokens(msg *convo.Message) int {
	if msg == nil {
		return 0
	}
	chars := 0
	for _, p := range msg.Parts {
		switch tp := p.(type) {
		case convo.TextPart:
			chars += len(tp.Text)
		case convo.ThinkingPart:
			chars += len(tp.Text)
		case convo.ToolCallPart:
			chars += len(tp.ToolName) + len(tp.ArgsTextBuffer)
		}
	}
	return (chars + charsPerToken - 1) / charsPerToken
}

// pendingMessages returns the unsealed messages in st scoped to rc, ordered
// by CreatedAt, along with their total estimated token count.
func pendingMessages(st *store.Store, rc *runctx.RunContext, scope convo.OMScope) ([]*convo.Message, int) {
	var out []*convo.Message
	total := 0
	for _, m := range st.All() {
		if m.Sealed {
			continue
		}
		if scope == convo.OMScopeThread && m.ThreadID != "" && m.ThreadID != rc.ThreadID {
			continue
		}
		if scope == convo.OMScopeResource && m.ResourceID != "" && m.ResourceID != rc.ResourceID {
			continue
		}
		out = append(out, m)
		total += estimateTokens(m)
	}
	return out, total
}

// ShouldRun reports whether an Observer or Reflector cycle should run now
// (spec.md §4.G cycle state machine). It satisfies
// runtime/agent/loop.MemoryScheduler.
func (e *Engine) ShouldRun(ctx context.Context, rc *runctx.RunContext, st *store.Store) bool {
	key := e.scopeKey(rc)
	e.mu.Lock()
	rec := e.recordLocked(key)
	obsBuf := e.cfg.Observation.bufferTokens()
	e.mu.Unlock()

	_, pending := pendingMessages(st, rc, e.cfg.Scope)
	total := pending
	if e.cfg.ShareTokenBudget {
		total += rec.ObservationTokens
	}

	if total >= e.cfg.Observation.blockAfterTokens() {
		return true
	}
	if total >= e.cfg.Observation.TriggerTokens {
		return true
	}
	if obsBuf > 0 && pending >= obsBuf {
		return true
	}
	if rec.ObservationTokens >= e.cfg.Reflection.blockAfterTokens() {
		return true
	}
	if rec.ObservationTokens >= e.cfg.Reflection.TriggerTokens {
		return true
	}
	return false
}

// Run performs whichever cycle is due: a (possibly buffered) observation, a
// reflection, or both in sequence (spec.md §4.G).
func (e *Engine) Run(ctx context.Context, rc *runctx.RunContext, st *store.Store) error {
	key := e.scopeKey(rc)
	msgs, pending := pendingMessages(st, rc, e.cfg.Scope)

	e.mu.Lock()
	rec := e.recordLocked(key)
	obsBufCfg := e.cfg.Observation.bufferTokens()
	blockAfter := e.cfg.Observation.blockAfterTokens()
	trigger := e.cfg.Observation.TriggerTokens
	e.mu.Unlock()

	total := pending
	if e.cfg.ShareTokenBudget {
		total += rec.ObservationTokens
	}

	if len(msgs) > 0 {
		blocking := total >= blockAfter || obsBufCfg == 0
		if obsBufCfg > 0 && !blocking && total < trigger {
			if err := e.bufferObservation(ctx, rc, key, msgs, st); err != nil {
				return err
			}
		} else if total >= trigger || blocking {
			if err := e.observeCycle(ctx, rc, key, msgs, st); err != nil {
				return err
			}
		}
	}

	e.mu.Lock()
	rec = e.recordLocked(key)
	needsReflect := rec.ObservationTokens >= e.cfg.Reflection.TriggerTokens
	e.mu.Unlock()
	if needsReflect {
		return e.reflectCycle(ctx, rc, key)
	}
	return nil
}

// bufferObservation runs the Observer now but holds the result in reserve,
// splicing only BufferActivation's share into the live record (spec.md §4.G
// "bufferActivation"). Open Question decision (see DESIGN.md): activation is
// applied at each buffer flush rather than deferred until the overall
// trigger fires, so conversational continuity is maintained incrementally;
// the undisclosed remainder still carries forward to the next cycle.
func (e *Engine) bufferObservation(ctx context.Context, rc *runctx.RunContext, key string, msgs []*convo.Message, st *store.Store) error {
	cycleID := uuid.NewString()
	e.publish(ctx, rc, &hooks.OMBufferingStartEvent{Base: hooks.NewBase(hooks.EventOMBufferingStart, rc.RunID, rc.ThreadID), CycleID: cycleID, Scope: string(e.cfg.Scope)})

	result, tokens, err := e.callObserver(ctx, rc, cycleID, msgs)
	if err != nil {
		e.publish(ctx, rc, &hooks.OMBufferingFailedEvent{Base: hooks.NewBase(hooks.EventOMBufferingFailed, rc.RunID, rc.ThreadID), CycleID: cycleID, Reason: err.Error()})
		return fmt.Errorf("memory: buffered observation: %w", err)
	}

	e.mu.Lock()
	buf := e.obsBuf[key]
	if buf == nil {
		buf = &bufferState{}
		e.obsBuf[key] = buf
	}
	buf.text = appendObservation(buf.text, result.ObservationsText)
	buf.pendingSinceFlush += tokens
	activation := e.cfg.Observation.BufferActivation
	e.mu.Unlock()

	e.publish(ctx, rc, &hooks.OMBufferingEndEvent{Base: hooks.NewBase(hooks.EventOMBufferingEnd, rc.RunID, rc.ThreadID), CycleID: cycleID, BufferTokens: tokens})

	sealMessages(st, msgs)
	e.appendDurable(ctx, rc, cycleID, EventOMObservation, result)

	if activation <= 0 {
		return nil
	}
	return e.activate(ctx, rc, key, cycleID, activation)
}

// activate splices a fraction of the buffered payload into the live record,
// keeping the remainder in reserve for the next cycle.
func (e *Engine) activate(ctx context.Context, rc *runctx.RunContext, key, cycleID string, fraction float64) error {
	e.mu.Lock()
	buf := e.obsBuf[key]
	if buf == nil || buf.text == "" {
		e.mu.Unlock()
		return nil
	}
	activated, remainder := splitByFraction(buf.text, fraction)
	rec := e.recordLocked(key)
	rec.ObservationsText = appendObservation(rec.ObservationsText, activated)
	rec.ObservationTokens = (len(rec.ObservationsText) + charsPerToken - 1) / charsPerToken
	rec.LastObservedAt = time.Now().UTC()
	buf.text = remainder
	activatedTokens := (len(activated) + charsPerToken - 1) / charsPerToken
	remainingTokens := (len(remainder) + charsPerToken - 1) / charsPerToken
	e.mu.Unlock()

	e.publish(ctx, rc, &hooks.OMActivationEvent{
		Base:            hooks.NewBase(hooks.EventOMActivation, rc.RunID, rc.ThreadID),
		CycleID:         cycleID,
		ActivatedTokens: activatedTokens,
		RemainingTokens: remainingTokens,
		ActivationFrac:  fraction,
	})
	return nil
}

// observeCycle runs a blocking (non-buffered) Observer cycle.
func (e *Engine) observeCycle(ctx context.Context, rc *runctx.RunContext, key string, msgs []*convo.Message, st *store.Store) error {
	cycleID := uuid.NewString()
	e.publish(ctx, rc, &hooks.OMObservationStartEvent{Base: hooks.NewBase(hooks.EventOMObservationStart, rc.RunID, rc.ThreadID), CycleID: cycleID, Scope: string(e.cfg.Scope)})

	result, _, err := e.callObserver(ctx, rc, cycleID, msgs)
	if err != nil {
		e.publish(ctx, rc, &hooks.OMObservationFailedEvent{Base: hooks.NewBase(hooks.EventOMObservationFailed, rc.RunID, rc.ThreadID), CycleID: cycleID, Reason: err.Error()})
		return fmt.Errorf("memory: observation: %w", err)
	}

	e.mu.Lock()
	rec := e.recordLocked(key)
	rec.ObservationsText = appendObservation(rec.ObservationsText, result.ObservationsText)
	rec.ObservationTokens = (len(rec.ObservationsText) + charsPerToken - 1) / charsPerToken
	rec.LastObservedAt = time.Now().UTC()
	e.mu.Unlock()

	sealMessages(st, msgs)
	e.appendDurable(ctx, rc, cycleID, EventOMObservation, result)

	e.publish(ctx, rc, &hooks.OMObservationEndEvent{Base: hooks.NewBase(hooks.EventOMObservationEnd, rc.RunID, rc.ThreadID), CycleID: cycleID, ObservationTokens: rec.ObservationTokens})
	return nil
}

// callObserver runs the Observer agent over msgs, chunking into parallel
// batches when the total exceeds MaxTokensPerBatch (spec.md §4.G "Observer
// call").
func (e *Engine) callObserver(ctx context.Context, rc *runctx.RunContext, cycleID string, msgs []*convo.Message) (ObserverResult, int, error) {
	if e.observer == nil {
		return ObserverResult{}, 0, fmt.Errorf("memory: no observer model configured")
	}
	batches := chunkByTokens(msgs, e.cfg.MaxTokensPerBatch)

	results := make([]ObserverResult, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			res, err := e.runObserverBatch(gctx, rc, batch)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ObserverResult{}, 0, err
	}

	merged := ObserverResult{}
	var totalTokens int
	for _, b := range batches {
		for _, m := range b {
			totalTokens += estimateTokens(m)
		}
	}
	for _, r := range results {
		merged.ObservationsText = appendObservation(merged.ObservationsText, r.ObservationsText)
		if r.CurrentTask != "" {
			merged.CurrentTask = r.CurrentTask
		}
		if r.SuggestedResponse != "" {
			merged.SuggestedResponse = r.SuggestedResponse
		}
	}
	return merged, totalTokens, nil
}

func (e *Engine) runObserverBatch(ctx context.Context, rc *runctx.RunContext, batch []*convo.Message) (ObserverResult, error) {
	req := observerRequest(rc, batch)
	resp, err := e.observer.Complete(ctx, req)
	if err != nil {
		return ObserverResult{}, err
	}
	return parseObserverResponse(resp), nil
}

// reflectCycle recompresses the accumulated observations text (spec.md §4.G
// "Reflector call").
func (e *Engine) reflectCycle(ctx context.Context, rc *runctx.RunContext, key string) error {
	if e.reflector == nil {
		return fmt.Errorf("memory: no reflector model configured")
	}
	cycleID := uuid.NewString()
	e.publish(ctx, rc, &hooks.OMReflectionStartEvent{Base: hooks.NewBase(hooks.EventOMReflectionStart, rc.RunID, rc.ThreadID), CycleID: cycleID})

	e.mu.Lock()
	rec := e.recordLocked(key)
	observations := rec.ObservationsText
	e.mu.Unlock()

	req := &model.Request{
		RunID: rc.RunID,
		Messages: []*model.Message{
			{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: reflectorSystemPrompt}}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: observations}}},
		},
	}
	resp, err := e.reflector.Complete(ctx, req)
	if err != nil {
		e.publish(ctx, rc, &hooks.OMReflectionFailedEvent{Base: hooks.NewBase(hooks.EventOMReflectionFailed, rc.RunID, rc.ThreadID), CycleID: cycleID, Reason: err.Error()})
		return fmt.Errorf("memory: reflection: %w", err)
	}
	shortened := responseText(resp)

	e.mu.Lock()
	rec = e.recordLocked(key)
	rec.ObservationsText = shortened
	rec.ObservationTokens = (len(shortened) + charsPerToken - 1) / charsPerToken
	rec.GenerationCount++
	generation := rec.GenerationCount
	// Discard buffered reflections generated from a since-replaced line
	// range: the reflector's output supersedes whatever was held in
	// reserve (spec.md §4.G "older buffered reflections ... are discarded").
	if buf, ok := e.refBuf[key]; ok {
		buf.text = ""
	}
	e.mu.Unlock()

	e.appendDurable(ctx, rc, cycleID, EventOMReflection, shortened)
	e.publish(ctx, rc, &hooks.OMReflectionEndEvent{Base: hooks.NewBase(hooks.EventOMReflectionEnd, rc.RunID, rc.ThreadID), CycleID: cycleID, ObservationTokens: rec.ObservationTokens, GenerationCount: generation})
	return nil
}

// Status returns the current om_status snapshot for a run's scope and
// publishes the corresponding event (spec.md §4.G "periodic om_status").
func (e *Engine) Status(ctx context.Context, rc *runctx.RunContext, st *store.Store) convo.ObservationalMemoryRecord {
	key := e.scopeKey(rc)
	_, pending := pendingMessages(st, rc, e.cfg.Scope)

	e.mu.Lock()
	rec := *e.recordLocked(key)
	e.mu.Unlock()

	e.publish(ctx, rc, &hooks.OMStatusEvent{
		Base:              hooks.NewBase(hooks.EventOMStatus, rc.RunID, rc.ThreadID),
		CycleID:           "",
		PendingTokens:     pending,
		ObservationTokens: rec.ObservationTokens,
		GenerationCount:   rec.GenerationCount,
	})
	return rec
}

func (e *Engine) publish(ctx context.Context, rc *runctx.RunContext, evt hooks.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(ctx, evt)
}

func (e *Engine) appendDurable(ctx context.Context, rc *runctx.RunContext, cycleID string, t EventType, data any) {
	if e.durable == nil {
		return
	}
	_ = e.durable.AppendEvents(ctx, rc.AgentName, rc.RunID, Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Labels:    map[string]string{"cycle_id": cycleID},
	})
}

func sealMessages(st *store.Store, msgs []*convo.Message) {
	for _, m := range msgs {
		st.Seal(m.ID)
	}
}

func appendObservation(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + "\n" + addition
}

// splitByFraction splits text so that roughly `fraction` of its length is
// returned as the activated portion, the rest as remainder, preferring to
// cut on a line boundary so partial observations stay coherent.
func splitByFraction(text string, fraction float64) (activated, remainder string) {
	if fraction >= 1 {
		return text, ""
	}
	if fraction <= 0 {
		return "", text
	}
	cut := int(float64(len(text)) * fraction)
	if idx := strings.IndexByte(text[cut:], '\n'); idx >= 0 {
		cut += idx
	}
	if cut <= 0 || cut >= len(text) {
		return text, ""
	}
	return text[:cut], text[cut:]
}

// chunkByTokens splits msgs into batches whose estimated token total stays
// at or below maxTokens, preserving order.
func chunkByTokens(msgs []*convo.Message, maxTokens int) [][]*convo.Message {
	if maxTokens <= 0 {
		return [][]*convo.Message{msgs}
	}
	var batches [][]*convo.Message
	var cur []*convo.Message
	curTokens := 0
	for _, m := range msgs {
		t := estimateTokens(m)
		if curTokens > 0 && curTokens+t > maxTokens {
			batches = append(batches, cur)
			cur = nil
			curTokens = 0
		}
		cur = append(cur, m)
		curTokens += t
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	if len(batches) == 0 {
		batches = [][]*convo.Message{{}}
	}
	return batches
}

const observerSystemPrompt = `You maintain a running digest of a conversation's history. Given the ` +
	`messages since your last observation, return JSON with "observations_text" (the updated digest, ` +
	`incorporating prior observations plus what's new), "current_task" (what the thread is working on ` +
	`right now), and "suggested_response" (a draft next step, or empty).`

const reflectorSystemPrompt = `You compress an accumulated observations document into a shorter one, ` +
	`preserving every fact and decision a planner would still need. Return only the compressed text.`

func observerRequest(rc *runctx.RunContext, batch []*convo.Message) *model.Request {
	msgs := make([]*model.Message, 0, len(batch)+1)
	msgs = append(msgs, &model.Message{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: observerSystemPrompt}}})
	for _, m := range batch {
		msgs = append(msgs, toModelMessage(m))
	}
	return &model.Request{RunID: rc.RunID, Messages: msgs}
}

func toModelMessage(m *convo.Message) *model.Message {
	var text strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(convo.TextPart); ok {
			text.WriteString(tp.Text)
		}
	}
	role := model.ConversationRoleUser
	if m.Role == convo.RoleAssistant {
		role = model.ConversationRoleAssistant
	} else if m.Role == convo.RoleSystem {
		role = model.ConversationRoleSystem
	}
	return &model.Message{Role: role, Parts: []model.Part{model.TextPart{Text: text.String()}}}
}

func responseText(resp *model.Response) string {
	if resp == nil {
		return ""
	}
	var out strings.Builder
	for _, msg := range resp.Content {
		for _, p := range msg.Parts {
			if tp, ok := p.(model.TextPart); ok {
				out.WriteString(tp.Text)
			}
		}
	}
	return out.String()
}

// parseObserverResponse parses the Observer's JSON payload, falling back to
// treating the raw text as the observations when it is not valid JSON (the
// Observer is a prompted agent, not a schema-enforced tool call).
func parseObserverResponse(resp *model.Response) ObserverResult {
	text := responseText(resp)
	var out ObserverResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err == nil && out.ObservationsText != "" {
		return out
	}
	return ObserverResult{ObservationsText: text}
}
