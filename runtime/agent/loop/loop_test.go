package loop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentgrove/corert/runtime/agent/model"
	"github.com/agentgrove/corert/runtime/agent/policy"
	"github.com/agentgrove/corert/runtime/agent/registry"
	"github.com/agentgrove/corert/runtime/agent/runctx"
	"github.com/agentgrove/corert/runtime/agent/store"
	"github.com/agentgrove/corert/runtime/agent/telemetry"
	"github.com/stretchr/testify/require"
)

// fakeStreamer replays a fixed chunk sequence, grounded on the teacher's
// in-memory model client test doubles (features/model/*/*_test.go).
type fakeStreamer struct {
	chunks []model.Chunk
	i      int
}

func (f *fakeStreamer) Recv() (model.Chunk, error) {
	if f.i >= len(f.chunks) {
		return model.Chunk{}, errEOF
	}
	c := f.chunks[f.i]
	f.i++
	return c, nil
}
func (f *fakeStreamer) Close() error            { return nil }
func (f *fakeStreamer) Metadata() map[string]any { return nil }

var errEOF = errStr("eof")

type errStr string

func (e errStr) Error() string { return string(e) }

type fakeClient struct {
	responses [][]model.Chunk
	calls     int
}

func (f *fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, nil
}

func (f *fakeClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &fakeStreamer{chunks: f.responses[idx]}, nil
}

func newRunContext() *runctx.RunContext {
	return &runctx.RunContext{
		RunID:    "run-1",
		ThreadID: "thread-1",
		Logger:   telemetry.NewNoopLogger(),
		Abort:    runctx.NewAbortSignal(context.Background()),
	}
}

func TestLoopFinishesWithoutToolCalls(t *testing.T) {
	client := &fakeClient{responses: [][]model.Chunk{
		{
			{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "hi"}}}},
			{Type: model.ChunkTypeUsage, UsageDelta: &model.TokenUsage{InputTokens: 5, OutputTokens: 3}},
		},
	}}
	l := New(Options{Model: client, Store: store.New()})
	out, err := l.Run(context.Background(), newRunContext())
	require.NoError(t, err)
	require.Equal(t, PhaseFinished, out.Phase)
	require.Equal(t, 5, out.Usage.InputTokens)
}

func TestLoopDispatchesToolCallAndLoopsAgain(t *testing.T) {
	invoked := false
	reg, err := registry.Assemble(map[registry.Source][]registry.ToolDescriptor{
		registry.SourceAssigned: {{
			ID:       "lookup",
			Category: policy.CategoryRead,
			Executor: func(ctx context.Context, rc *runctx.RunContext, input any) (registry.Result, error) {
				invoked = true
				return registry.Result{Value: "ok"}, nil
			},
		}},
	})
	require.NoError(t, err)
	gate := policy.New(policy.DefaultRules(), nil)
	disp := registry.NewDispatcher(reg, gate, nil)

	args, _ := json.Marshal(map[string]any{"q": "x"})
	client := &fakeClient{responses: [][]model.Chunk{
		{{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Name: "lookup", ID: "c1", Payload: args}}},
		{{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "done"}}}}},
	}}

	l := New(Options{Model: client, Store: store.New(), Registry: reg, Dispatcher: disp})
	out, err := l.Run(context.Background(), newRunContext())
	require.NoError(t, err)
	require.Equal(t, PhaseFinished, out.Phase)
	require.True(t, invoked)
}

func TestLoopSuspendsOnApprovalRequired(t *testing.T) {
	reg, err := registry.Assemble(map[registry.Source][]registry.ToolDescriptor{
		registry.SourceAssigned: {{
			ID:       "edit_file",
			Category: policy.CategoryEdit,
			Executor: func(ctx context.Context, rc *runctx.RunContext, input any) (registry.Result, error) {
				return registry.Result{Value: "edited"}, nil
			},
		}},
	})
	require.NoError(t, err)
	gate := policy.New(policy.DefaultRules(), nil)
	disp := registry.NewDispatcher(reg, gate, nil)

	args, _ := json.Marshal(map[string]any{"path": "a.txt"})
	client := &fakeClient{responses: [][]model.Chunk{
		{{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Name: "edit_file", ID: "c1", Payload: args}}},
	}}

	l := New(Options{Model: client, Store: store.New(), Registry: reg, Dispatcher: disp})
	out, err := l.Run(context.Background(), newRunContext())
	require.NoError(t, err)
	require.Equal(t, PhaseSuspended, out.Phase)
	require.NotNil(t, out.Suspend)
	require.Equal(t, registry.SuspendApproval, out.Suspend.Kind)
}

func TestLoopStopsAtMaxSteps(t *testing.T) {
	args, _ := json.Marshal(map[string]any{})
	reg, err := registry.Assemble(map[registry.Source][]registry.ToolDescriptor{
		registry.SourceAssigned: {{
			ID:       "noop",
			Category: policy.CategoryRead,
			Executor: func(ctx context.Context, rc *runctx.RunContext, input any) (registry.Result, error) {
				return registry.Result{Value: "ok"}, nil
			},
		}},
	})
	require.NoError(t, err)
	gate := policy.New(policy.DefaultRules(), nil)
	disp := registry.NewDispatcher(reg, gate, nil)

	chunk := []model.Chunk{{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Name: "noop", ID: "c1", Payload: args}}}
	client := &fakeClient{responses: [][]model.Chunk{chunk, chunk, chunk}}

	l := New(Options{Model: client, Store: store.New(), Registry: reg, Dispatcher: disp, MaxSteps: 2})
	out, err := l.Run(context.Background(), newRunContext())
	require.NoError(t, err)
	require.Equal(t, PhaseFinished, out.Phase)
}
