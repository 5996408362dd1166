package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/agentgrove/corert/runtime/agent/coreerr"
	"github.com/agentgrove/corert/runtime/agent/hooks"
	"github.com/agentgrove/corert/runtime/agent/policy"
	"github.com/agentgrove/corert/runtime/agent/runctx"
	"github.com/agentgrove/corert/runtime/agent/structured"
)

// SuspendKind classifies why an executor suspended instead of returning a
// concrete result (spec.md §3 "ToolDescriptor").
type SuspendKind string

const (
	SuspendApproval          SuspendKind = "approval"
	SuspendSubAgent          SuspendKind = "sub-agent-suspend"
	SuspendWorkflow          SuspendKind = "workflow-suspend"
)

// Suspend is returned by an executor (or synthesized by the gate) instead of
// a concrete result when the call cannot complete synchronously.
type Suspend struct {
	Kind          SuspendKind
	SuspendPayload any
	ResumeSchema  map[string]any
	RunID         string
}

// Result is the outcome of invoking a tool executor.
type Result struct {
	Value   any
	IsError bool
	Suspend *Suspend
}

// Executor invokes a tool with structured input and the run's context. It
// returns a concrete Result, an error Result (IsError=true), or a Result
// carrying a Suspend record (spec.md §4.C "Invocation contract").
type Executor func(ctx context.Context, rc *runctx.RunContext, input any) (Result, error)

// Call is one in-flight or completed tool invocation, as constructed by the
// agent loop from a streamed tool-call part.
type Call struct {
	CallID   string
	ToolName string
	Input    any
}

// Dispatcher executes tool calls against a Registry, enforcing the
// Permissions & Approval Gate and emitting the ordered tool_* event sequence
// (spec.md §4.C, invariant 9: "tool_start, tool_update*, tool_end").
type Dispatcher struct {
	Registry *Registry
	Gate     *policy.Gate
	Bus      hooks.Bus
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(reg *Registry, gate *policy.Gate, bus hooks.Bus) *Dispatcher {
	return &Dispatcher{Registry: reg, Gate: gate, Bus: bus}
}

// Dispatch executes call against its registered tool, enforcing the approval
// gate before invocation (spec.md §4.C "Approval gate", invariant 8).
//
// If the effective policy is RuleDeny, Dispatch returns an error Result
// without invoking the executor. If the effective policy is RuleAsk,
// Dispatch publishes a tool_approval_required event and returns a Result
// carrying a SuspendApproval record; the caller (agent loop) is responsible
// for pausing the run until a policy.Decision resumes it, then re-invoking
// Dispatch once the gate has been updated via Gate.Resolve.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *runctx.RunContext, call Call) (Result, error) {
	desc, ok := d.Registry.Lookup(call.ToolName)
	if !ok {
		return Result{IsError: true, Value: fmt.Sprintf("unknown tool %q", call.ToolName)}, nil
	}

	meta := policy.ToolMetadata{ID: desc.normalizedName, Name: desc.normalizedName, Category: desc.Category, RequiresApproval: desc.RequiresApproval}
	if d.Gate.Denied(ctx, meta) {
		return Result{IsError: true, Value: fmt.Sprintf("tool %q is denied by policy", call.ToolName)}, nil
	}
	if d.Gate.RequiresApproval(ctx, meta) {
		_ = d.publish(ctx, &hooks.ToolApprovalRequiredEvent{
			Base:     hooks.NewBase(hooks.EventToolApprovalRequired, rc.RunID, rc.ThreadID),
			CallID:   call.CallID,
			ToolName: call.ToolName,
			Category: string(desc.Category),
			Input:    call.Input,
		})
		return Result{Suspend: &Suspend{Kind: SuspendApproval, SuspendPayload: call.Input, RunID: rc.RunID}}, nil
	}

	return d.execute(ctx, rc, desc, call)
}

// Resume re-invokes a tool after an approval decision has been applied to
// the gate via policy.Gate.Resolve. If approved is false, a synthetic
// error result is returned without invoking the executor.
func (d *Dispatcher) Resume(ctx context.Context, rc *runctx.RunContext, call Call, approved bool) (Result, error) {
	if !approved {
		return Result{IsError: true, Value: "declined by user"}, nil
	}
	desc, ok := d.Registry.Lookup(call.ToolName)
	if !ok {
		return Result{IsError: true, Value: fmt.Sprintf("unknown tool %q", call.ToolName)}, nil
	}
	return d.execute(ctx, rc, desc, call)
}

func (d *Dispatcher) execute(ctx context.Context, rc *runctx.RunContext, desc *ToolDescriptor, call Call) (Result, error) {
	_ = d.publish(ctx, &hooks.ToolInputEndEvent{
		Base: hooks.NewBase(hooks.EventToolInputEnd, rc.RunID, rc.ThreadID), CallID: call.CallID, ToolName: call.ToolName, Arguments: call.Input,
	})

	start := time.Now()

	// A user-initiated abort converts every pending call into a synthetic
	// error result rather than propagating a transport error (spec.md §4.C
	// "Failure semantics", §5).
	if rc.Abort != nil && rc.Abort.Aborted() {
		res := Result{IsError: true, Value: coreerr.ErrInterrupted}
		d.emitResult(ctx, rc, call, res, time.Since(start))
		return res, nil
	}

	res, err := safeExecute(ctx, rc, desc.Executor, call.Input)
	if err != nil {
		res = Result{IsError: true, Value: err.Error()}
	}
	if res.Suspend == nil {
		d.emitResult(ctx, rc, call, res, time.Since(start))
	}
	return res, nil
}

// safeExecute converts an executor panic into an error result, since
// executor failures must never abort the parent agent loop (spec.md §4.C
// "Failure semantics").
func safeExecute(ctx context.Context, rc *runctx.RunContext, exec Executor, input any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool executor panicked: %v", r)
		}
	}()
	return exec(ctx, rc, input)
}

func (d *Dispatcher) emitResult(ctx context.Context, rc *runctx.RunContext, call Call, res Result, dur time.Duration) {
	_ = d.publish(ctx, &hooks.ToolResultEvent{
		Base:     hooks.NewBase(hooks.EventToolResult, rc.RunID, rc.ThreadID),
		CallID:   call.CallID,
		ToolName: call.ToolName,
		Result:   res.Value,
		IsError:  res.IsError,
		Duration: dur,
	})
}

func (d *Dispatcher) publish(ctx context.Context, evt hooks.Event) error {
	if d.Bus == nil {
		return nil
	}
	return d.Bus.Publish(ctx, evt)
}

// InputAccumulator incrementally parses a streaming tool call's raw argument
// JSON and emits a tool_input_update event for each successfully parsed
// partial (spec.md §4.C "Streaming tool updates").
type InputAccumulator struct {
	bus      hooks.Bus
	runID    string
	threadID string
	callID   string
	toolName string
	raw      string
	last     any
}

// NewInputAccumulator constructs an InputAccumulator for one streaming tool
// call.
func NewInputAccumulator(bus hooks.Bus, runID, threadID, callID, toolName string) *InputAccumulator {
	return &InputAccumulator{bus: bus, runID: runID, threadID: threadID, callID: callID, toolName: toolName}
}

// Feed appends delta to the raw argument buffer, parses it with the
// tolerant partial-JSON parser, and publishes a tool_input_update event when
// a new partial successfully (or after repair) parses.
func (a *InputAccumulator) Feed(ctx context.Context, delta string) {
	a.raw += delta
	value, state := structured.ParsePartialJSON(a.raw)
	if state == structured.StatePartial {
		return
	}
	a.last = value
	if a.bus == nil {
		return
	}
	_ = a.bus.Publish(ctx, &hooks.ToolInputUpdateEvent{
		Base: hooks.NewBase(hooks.EventToolInputUpdate, a.runID, a.threadID),
		CallID:      a.callID,
		ArgsDelta:   delta,
		PartialArgs: value,
	})
}

// Value returns the last successfully parsed partial argument value.
func (a *InputAccumulator) Value() any { return a.last }
