// Package loop implements the Agent Loop (spec.md §4.D): the multi-step
// reason/act orchestrator that drives one agent.generate()/agent.stream()
// call from prompt assembly through tool execution to completion or
// suspension.
//
// Grounded on the teacher's runtime/agent/runtime/workflow_loop.go state
// machine (interrupts -> deadline check -> tool-turn -> finish) and
// runtime/agent/engine.Engine's pluggable WorkflowContext abstraction. Unlike
// the teacher's workflow-bound implementation, Step below is engine-agnostic:
// it is meant to be invoked once per step from inside either
// engine/temporal's workflow function or engine/inmem's goroutine loop, both
// of which own replay/determinism concerns that the loop body itself does
// not need to know about.
package loop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentgrove/corert/runtime/agent/convo"
	"github.com/agentgrove/corert/runtime/agent/coreerr"
	"github.com/agentgrove/corert/runtime/agent/hooks"
	"github.com/agentgrove/corert/runtime/agent/model"
	"github.com/agentgrove/corert/runtime/agent/policy"
	"github.com/agentgrove/corert/runtime/agent/registry"
	"github.com/agentgrove/corert/runtime/agent/runctx"
	"github.com/agentgrove/corert/runtime/agent/store"
	"github.com/google/uuid"
)

// defaultMaxSteps and networkMaxSteps are the step bounds of spec.md §4.D
// ("max_steps default 20 for network mode, 5 for single-agent").
const (
	defaultMaxSteps = 5
	networkMaxSteps = 20
)

// Phase names one state in the Agent Loop's state machine (spec.md §4.D
// diagram).
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePrompting  Phase = "prompting"
	PhaseStreaming  Phase = "streaming"
	PhaseNeedsTool  Phase = "needs-tool"
	PhaseToolExec   Phase = "tool-exec"
	PhaseSuspended  Phase = "suspended"
	PhaseFinished   Phase = "finished"
)

// InputProcessor runs before prompt assembly (memory recall, workspace
// instructions, skills, user hooks — spec.md §4.D step 1).
type InputProcessor func(ctx context.Context, rc *runctx.RunContext, st *store.Store) error

// OutputProcessor runs after a step's stream is consumed (spec.md §4.D
// step 6).
type OutputProcessor func(ctx context.Context, rc *runctx.RunContext, st *store.Store) error

// MemoryScheduler decides whether the Observational Memory Engine should run
// at a step boundary and, if so, runs it (spec.md §4.D step 7, §4.G). The
// concrete scheduler lives in runtime/agent/memory; Loop only depends on this
// narrow interface so the two packages do not import each other.
type MemoryScheduler interface {
	ShouldRun(ctx context.Context, rc *runctx.RunContext, st *store.Store) bool
	Run(ctx context.Context, rc *runctx.RunContext, st *store.Store) error
}

// Options configures a Loop.
type Options struct {
	Model             model.Client
	Store             *store.Store
	Registry          *registry.Registry
	Dispatcher        *registry.Dispatcher
	Gate              *policy.Gate
	Bus               hooks.Bus
	Memory            MemoryScheduler
	InputProcessors   []InputProcessor
	OutputProcessors  []OutputProcessor
	MaxSteps          int
	NetworkMode       bool
	PromptOptions     store.PromptOptions
}

// Loop drives one run's steps. A Loop is single-use: construct one per run
// via New.
type Loop struct {
	opts  Options
	steps int
}

// New constructs a Loop from Options, applying the step-bound default of
// spec.md §4.D when MaxSteps is unset.
func New(opts Options) *Loop {
	if opts.MaxSteps == 0 {
		if opts.NetworkMode {
			opts.MaxSteps = networkMaxSteps
		} else {
			opts.MaxSteps = defaultMaxSteps
		}
	}
	return &Loop{opts: opts}
}

// Outcome is the terminal result of Run: either a finished response, a
// suspension awaiting external input, or an error.
type Outcome struct {
	Phase     Phase
	Usage     model.TokenUsage
	Suspend   *registry.Suspend
	SuspendCall *registry.Call
}

// Run drives the loop until it finishes, suspends, or the step bound is
// reached (spec.md §4.D "Step bound").
func (l *Loop) Run(ctx context.Context, rc *runctx.RunContext) (Outcome, error) {
	l.publish(ctx, rc, &hooks.AgentStartEvent{Base: hooks.NewBase(hooks.EventAgentStart, rc.RunID, rc.ThreadID)})

	var total model.TokenUsage
	for {
		if rc.Abort != nil && rc.Abort.Aborted() {
			l.publish(ctx, rc, &hooks.AgentEndEvent{Base: hooks.NewBase(hooks.EventAgentEnd, rc.RunID, rc.ThreadID), Status: "canceled"})
			return Outcome{Phase: PhaseFinished, Usage: total}, nil
		}
		if l.steps >= l.opts.MaxSteps {
			l.publish(ctx, rc, &hooks.AgentEndEvent{Base: hooks.NewBase(hooks.EventAgentEnd, rc.RunID, rc.ThreadID), Status: "success"})
			return Outcome{Phase: PhaseFinished, Usage: total}, nil
		}
		l.steps++

		usage, sawToolCall, outcome, err := l.step(ctx, rc)
		total.InputTokens += usage.InputTokens
		total.OutputTokens += usage.OutputTokens
		total.TotalTokens += usage.TotalTokens
		if err != nil {
			l.publish(ctx, rc, &hooks.ErrorEvent{Base: hooks.NewBase(hooks.EventError, rc.RunID, rc.ThreadID), Message: err.Error()})
			return Outcome{Phase: PhaseFinished, Usage: total}, err
		}
		if outcome != nil {
			outcome.Usage = total
			return *outcome, nil
		}
		if !sawToolCall {
			// The model produced no tool calls this step: the turn is
			// complete (spec.md §4.D diagram, "needs-tool" branch not
			// taken -> finished).
			if l.opts.Memory != nil && l.opts.Memory.ShouldRun(ctx, rc, l.opts.Store) {
				if err := l.opts.Memory.Run(ctx, rc, l.opts.Store); err != nil {
					rc.Logger.Error(ctx, "om cycle failed", "error", err)
				}
			}
			l.publish(ctx, rc, &hooks.AgentEndEvent{Base: hooks.NewBase(hooks.EventAgentEnd, rc.RunID, rc.ThreadID), Status: "success"})
			return Outcome{Phase: PhaseFinished, Usage: total}, nil
		}

		if l.opts.Memory != nil && l.opts.Memory.ShouldRun(ctx, rc, l.opts.Store) {
			if err := l.opts.Memory.Run(ctx, rc, l.opts.Store); err != nil {
				rc.Logger.Error(ctx, "om cycle failed", "error", err)
			}
		}
	}
}

// step runs one iteration of spec.md §4.D's seven-part step: input
// processors, prompt assembly, LLM call, stream consumption, tool execution,
// output processors. It returns whether any tool call was emitted and,
// non-nil, a terminal Outcome (suspension).
func (l *Loop) step(ctx context.Context, rc *runctx.RunContext) (model.TokenUsage, bool, *Outcome, error) {
	st := l.opts.Store

	for _, proc := range l.opts.InputProcessors {
		if err := proc(ctx, rc, st); err != nil {
			return model.TokenUsage{}, false, nil, fmt.Errorf("input processor: %w", err)
		}
	}

	req := &model.Request{
		RunID:    rc.RunID,
		Messages: st.PromptMessages(l.opts.PromptOptions),
		Tools:    l.toolDefinitions(),
		Stream:   true,
	}

	l.publish(ctx, rc, &hooks.MessageStartEvent{Base: hooks.NewBase(hooks.EventMessageStart, rc.RunID, rc.ThreadID)})

	stream, err := l.opts.Model.Stream(ctx, req)
	if err != nil {
		return model.TokenUsage{}, false, nil, fmt.Errorf("model stream: %w", err)
	}
	defer stream.Close()

	var usage model.TokenUsage
	var toolCalls []model.ToolCall
	msgID := uuid.NewString()

	for {
		chunk, err := stream.Recv()
		if err != nil {
			break
		}
		switch chunk.Type {
		case model.ChunkTypeText:
			if chunk.Message != nil {
				for _, p := range chunk.Message.Parts {
					if tp, ok := p.(model.TextPart); ok {
						l.publish(ctx, rc, &hooks.MessageUpdateEvent{Base: hooks.NewBase(hooks.EventMessageUpdate, rc.RunID, rc.ThreadID), MessageID: msgID, Part: convo.TextPart{Text: tp.Text}})
					}
				}
			}
		case model.ChunkTypeThinking:
			l.publish(ctx, rc, &hooks.MessageUpdateEvent{Base: hooks.NewBase(hooks.EventMessageUpdate, rc.RunID, rc.ThreadID), MessageID: msgID, Part: convo.ThinkingPart{Text: chunk.Thinking}})
		case model.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
		case model.ChunkTypeUsage:
			if chunk.UsageDelta != nil {
				usage.InputTokens += chunk.UsageDelta.InputTokens
				usage.OutputTokens += chunk.UsageDelta.OutputTokens
				usage.TotalTokens += chunk.UsageDelta.TotalTokens
			}
		}
	}

	l.publish(ctx, rc, &hooks.MessageEndEvent{Base: hooks.NewBase(hooks.EventMessageEnd, rc.RunID, rc.ThreadID), MessageID: msgID})
	l.publish(ctx, rc, &hooks.UsageUpdateEvent{Base: hooks.NewBase(hooks.EventUsageUpdate, rc.RunID, rc.ThreadID), InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens})

	if len(toolCalls) == 0 {
		for _, proc := range l.opts.OutputProcessors {
			if err := proc(ctx, rc, st); err != nil {
				return usage, false, nil, fmt.Errorf("output processor: %w", err)
			}
		}
		return usage, false, nil, nil
	}

	if l.opts.Dispatcher == nil {
		return usage, true, nil, coreerr.Wrap(coreerr.DomainSystem, "missing_dispatcher", "loop has tool calls but no dispatcher configured", nil)
	}

	for _, tc := range toolCalls {
		var args any
		_ = json.Unmarshal(tc.Payload, &args)

		call := registry.Call{CallID: tc.ID, ToolName: string(tc.Name), Input: args}
		res, err := l.opts.Dispatcher.Dispatch(ctx, rc, call)
		if err != nil {
			return usage, true, nil, fmt.Errorf("dispatch %s: %w", tc.Name, err)
		}
		if res.Suspend != nil {
			l.publish(ctx, rc, &hooks.AgentEndEvent{Base: hooks.NewBase(hooks.EventAgentEnd, rc.RunID, rc.ThreadID), Status: "suspended"})
			return usage, true, &Outcome{Phase: PhaseSuspended, Suspend: res.Suspend, SuspendCall: &call}, nil
		}
	}

	for _, proc := range l.opts.OutputProcessors {
		if err := proc(ctx, rc, st); err != nil {
			return usage, true, nil, fmt.Errorf("output processor: %w", err)
		}
	}
	return usage, true, nil, nil
}

func (l *Loop) toolDefinitions() []*model.ToolDefinition {
	if l.opts.Registry == nil {
		return nil
	}
	descs := l.opts.Registry.Descriptors()
	defs := make([]*model.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, &model.ToolDefinition{
			Name:        d.NormalizedName(),
			InputSchema: d.InputSchema,
		})
	}
	return defs
}

func (l *Loop) publish(ctx context.Context, rc *runctx.RunContext, evt hooks.Event) {
	if l.opts.Bus == nil {
		return
	}
	_ = l.opts.Bus.Publish(ctx, evt)
}
