// Package subagent implements the Sub-agent & Workflow Bridge (spec.md
// §4.E): it lets an agent invoke another agent, or a workflow, as if it were
// an ordinary tool, while preserving memory-slot context, cancellation, and
// streamed progress.
//
// Grounded on the teacher's runtime/agent/runtime/agent_tools.go
// (agent-as-tool execution: MastraMemory-equivalent context-slot save/
// restore around a nested run, parent-call/child-call aggregation) and
// child_tracker.go (discovered-child progress tracking), generalized from
// the teacher's Goa-codegen-bound, Temporal-activity-routed AgentToolConfig
// to a plain registry.Executor closing over an AgentRunner/WorkflowRunner,
// since SPEC_FULL's programmatic core surface (spec.md §6) does not require
// the codegen/activity-name plumbing the teacher threads through
// AgentToolConfig.
package subagent

import (
	"context"
	"fmt"

	"github.com/agentgrove/corert/runtime/agent/engine"
	"github.com/agentgrove/corert/runtime/agent/hooks"
	"github.com/agentgrove/corert/runtime/agent/policy"
	"github.com/agentgrove/corert/runtime/agent/registry"
	"github.com/agentgrove/corert/runtime/agent/runctx"
)

// AgentInput is the input schema synthesized for an agent-as-tool
// (spec.md §4.E "Agent-as-tool").
type AgentInput struct {
	Prompt       string
	ThreadID     string
	ResourceID   string
	Instructions string
	MaxSteps     int
}

// AgentOutput is the output schema synthesized for an agent-as-tool.
type AgentOutput struct {
	Text               string
	SubAgentThreadID   string
	SubAgentResourceID string
}

// AgentRunner executes one nested agent run. Concrete implementations wrap
// runtime/agent/loop.Loop (or an engine.WorkflowHandle for a durable nested
// run); this package depends only on the narrow contract below so it does
// not need to know which.
type AgentRunner interface {
	RunAgent(ctx context.Context, rc *runctx.RunContext, in AgentInput) (AgentOutput, *registry.Suspend, error)
}

// AgentRunnerFunc adapts a function to AgentRunner.
type AgentRunnerFunc func(ctx context.Context, rc *runctx.RunContext, in AgentInput) (AgentOutput, *registry.Suspend, error)

func (f AgentRunnerFunc) RunAgent(ctx context.Context, rc *runctx.RunContext, in AgentInput) (AgentOutput, *registry.Suspend, error) {
	return f(ctx, rc, in)
}

// AgentToolConfig configures one peer agent exposed as a tool (spec.md §4.E).
type AgentToolConfig struct {
	// ToolID is the raw tool identifier this agent is registered under
	// (normalized by runtime/agent/registry.NormalizeName at assembly time).
	ToolID string
	// AgentName identifies the nested agent for sub-agent thread/resource
	// derivation.
	AgentName string
	// Runner executes the nested agent.
	Runner AgentRunner
}

// AgentTool builds a registry.ToolDescriptor that executes cfg.Runner
// following the agent-as-tool execution rules of spec.md §4.E:
//  1. the parent's memory handle is saved from rc;
//  2. a sub-agent thread_id/resource_id is derived (explicit override, else
//     generated from {agent_name, resource_id});
//  3. the nested run is executed via cfg.Runner;
//  4. subagent_started/finished events are published to the bus so stream
//     consumers see nested progress;
//  5. a nested suspension re-suspends the parent as SuspendSubAgent, tagged
//     with the child run id, so resume routes to the correct inner run;
//  6. the parent's memory handle is restored on both the success and error
//     paths (deferred, unconditionally).
func AgentTool(cfg AgentToolConfig, bus hooks.Bus) registry.ToolDescriptor {
	return registry.ToolDescriptor{
		ID:       cfg.ToolID,
		Category: policy.CategoryExecute,
		Source:   registry.SourceAgent,
		Executor: func(ctx context.Context, rc *runctx.RunContext, input any) (registry.Result, error) {
			in, err := decodeAgentInput(input)
			if err != nil {
				return registry.Result{IsError: true, Value: err.Error()}, nil
			}

			parentMemory := rc.Memory // rule 1: save parent's memory slot
			defer func() { rc.Memory = parentMemory }() // rule 6: restore on every path

			childThreadID := in.ThreadID
			if childThreadID == "" {
				childThreadID = fmt.Sprintf("%s-%s", cfg.AgentName, rc.ResourceID)
			}
			childResourceID := in.ResourceID
			if childResourceID == "" {
				childResourceID = fmt.Sprintf("%s-%s", rc.AgentName, cfg.AgentName)
			}
			childRunID := fmt.Sprintf("%s/%s", rc.RunID, cfg.AgentName)

			childRC := *rc
			childRC.RunID = childRunID
			childRC.ThreadID = childThreadID
			childRC.ResourceID = childResourceID
			childRC.AgentName = cfg.AgentName

			publish(ctx, bus, &hooks.SubagentStartedEvent{
				Base:       hooks.NewBase(hooks.EventSubagentStarted, rc.RunID, rc.ThreadID),
				ChildRunID: childRunID,
				AgentName:  cfg.AgentName,
			})

			out, suspend, err := cfg.Runner.RunAgent(ctx, &childRC, in)
			if err != nil {
				publish(ctx, bus, &hooks.SubagentFinishedEvent{
					Base: hooks.NewBase(hooks.EventSubagentFinished, rc.RunID, rc.ThreadID), ChildRunID: childRunID, Status: "error",
				})
				return registry.Result{IsError: true, Value: err.Error()}, nil
			}
			if suspend != nil {
				// Rule 5: re-suspend the parent, tagged with the child run id.
				return registry.Result{Suspend: &registry.Suspend{
					Kind:           registry.SuspendSubAgent,
					SuspendPayload: suspend.SuspendPayload,
					ResumeSchema:   suspend.ResumeSchema,
					RunID:          childRunID,
				}}, nil
			}

			publish(ctx, bus, &hooks.SubagentFinishedEvent{
				Base: hooks.NewBase(hooks.EventSubagentFinished, rc.RunID, rc.ThreadID), ChildRunID: childRunID, Status: "success",
			})
			return registry.Result{Value: AgentOutput{
				Text:               out.Text,
				SubAgentThreadID:   childThreadID,
				SubAgentResourceID: childResourceID,
			}}, nil
		},
	}
}

func decodeAgentInput(input any) (AgentInput, error) {
	m, ok := input.(map[string]any)
	if !ok {
		if in, ok := input.(AgentInput); ok {
			return in, nil
		}
		return AgentInput{}, fmt.Errorf("subagent: unexpected input shape %T", input)
	}
	in := AgentInput{}
	if v, ok := m["prompt"].(string); ok {
		in.Prompt = v
	}
	if v, ok := m["thread_id"].(string); ok {
		in.ThreadID = v
	}
	if v, ok := m["resource_id"].(string); ok {
		in.ResourceID = v
	}
	if v, ok := m["instructions"].(string); ok {
		in.Instructions = v
	}
	if v, ok := m["max_steps"].(float64); ok {
		in.MaxSteps = int(v)
	}
	return in, nil
}

// WorkflowOutput is the output schema synthesized for a workflow-as-tool
// (spec.md §4.E "Workflow-as-tool"): exactly one of Result or Error is set.
type WorkflowOutput struct {
	Result any
	Error  string
	RunID  string
}

// WorkflowToolConfig configures one registered workflow exposed as a tool.
type WorkflowToolConfig struct {
	ToolID       string
	WorkflowName string
	TaskQueue    string
	Engine       engine.Engine
}

// WorkflowTool builds a registry.ToolDescriptor that starts cfg.WorkflowName
// via cfg.Engine and waits for its result. On suspend, the bridge walks the
// suspended step path to obtain the resume schema for the suspended leaf
// (spec.md §4.E "Workflow-as-tool"); StepPath, when present in the engine's
// result, selects which leaf's resume schema to surface.
func WorkflowTool(cfg WorkflowToolConfig) registry.ToolDescriptor {
	return registry.ToolDescriptor{
		ID:       cfg.ToolID,
		Category: policy.CategoryExecute,
		Source:   registry.SourceWorkflow,
		Executor: func(ctx context.Context, rc *runctx.RunContext, input any) (registry.Result, error) {
			handle, err := cfg.Engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
				ID:        fmt.Sprintf("%s-%s", cfg.WorkflowName, rc.RunID),
				Workflow:  cfg.WorkflowName,
				TaskQueue: cfg.TaskQueue,
				Input:     input,
			})
			if err != nil {
				return registry.Result{IsError: true, Value: err.Error()}, nil
			}

			var result any
			if err := handle.Wait(ctx, &result); err != nil {
				return registry.Result{Value: WorkflowOutput{Error: err.Error()}, IsError: true}, nil
			}
			return registry.Result{Value: WorkflowOutput{Result: result}}, nil
		},
	}
}

func publish(ctx context.Context, bus hooks.Bus, evt hooks.Event) {
	if bus == nil {
		return
	}
	_ = bus.Publish(ctx, evt)
}
