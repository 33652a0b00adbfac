package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/intent"
	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/types"
)

// scriptedProvider returns canned responses in order: the first call serves
// classification, the second tool selection.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.calls >= len(p.responses) {
		return nil, errors.New("no scripted response left")
	}
	content := p.responses[p.calls]
	p.calls++
	return &llm.ChatResponse{Content: content}, nil
}

func respondingHandler(id string, answer string) types.Handler {
	return &types.HandlerFunc{
		Identifier: id,
		Desc:       id + " handler",
		Fn: func(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
			st.Answer = answer
			return st, nil
		},
	}
}

type scriptedTool struct {
	id  string
	err error
}

func (t *scriptedTool) ID() string                         { return t.id }
func (t *scriptedTool) Description() string                { return t.id }
func (t *scriptedTool) Constraints() types.ToolConstraints { return types.ToolConstraints{} }
func (t *scriptedTool) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	if t.err != nil {
		return nil, t.err
	}
	st.Answer = "tool output"
	return st, nil
}

func newEngine(t *testing.T, provider llm.Provider, reg *registry.Registry, cfg Config) *Engine {
	t.Helper()
	classifier := intent.NewClassifier(provider, reg, nil, intent.ClassifierConfig{}, nil)
	selector := intent.NewSelector(provider, reg, intent.SelectorConfig{}, nil)
	return New(classifier, selector, reg, cfg, nil)
}

func baseRegistry(t *testing.T, tools ...types.Tool) *registry.Registry {
	t.Helper()
	reg := registry.New(nil)
	require.NoError(t, reg.RegisterHandler(respondingHandler("chat", "answered by chat")))
	require.NoError(t, reg.RegisterHandler(respondingHandler("coding", "answered by coding")))
	for _, tool := range tools {
		require.NoError(t, reg.RegisterTool("coding", tool))
	}
	reg.Freeze()
	return reg
}

func TestEngine_HappyPath(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"handler":"coding","confidence":0.95}`,
		`[]`,
	}}
	e := newEngine(t, provider, baseRegistry(t), Config{ConfidenceThreshold: 0.6, DefaultHandler: "chat"})

	out, err := e.Handle(context.Background(), Request{RequestID: "r1", Message: "write a function"})
	require.NoError(t, err)
	assert.Equal(t, StateResponded, out.State)
	assert.Equal(t, "coding", out.Data.Classification.Handler)
	assert.Equal(t, "answered by coding", out.Data.Answer)
	assert.Empty(t, out.Data.Degradations)
}

func TestEngine_ConfidenceBelowThresholdRoutesToDefault(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"handler":"coding","confidence":0.42}`,
		`[]`,
	}}
	e := newEngine(t, provider, baseRegistry(t), Config{ConfidenceThreshold: 0.6, DefaultHandler: "chat"})

	out, err := e.Handle(context.Background(), Request{RequestID: "r2", Message: "hmm"})
	require.NoError(t, err)
	assert.Equal(t, StateResponded, out.State)
	// Routed to the default, original intent preserved.
	assert.Equal(t, "chat", out.Data.Classification.Handler)
	assert.Equal(t, "coding", out.Data.Classification.Intent)
	assert.Contains(t, out.Data.Degradations, "routing_fallback")
	assert.Equal(t, "answered by chat", out.Data.Answer)
}

func TestEngine_ThresholdIsInclusive(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"handler":"coding","confidence":0.6}`,
		`[]`,
	}}
	e := newEngine(t, provider, baseRegistry(t), Config{ConfidenceThreshold: 0.6, DefaultHandler: "chat"})

	out, err := e.Handle(context.Background(), Request{RequestID: "r3", Message: "code"})
	require.NoError(t, err)
	assert.Equal(t, "coding", out.Data.Classification.Handler)
	assert.NotContains(t, out.Data.Degradations, "routing_fallback")
}

func TestEngine_ToolFailureDegradesButResponds(t *testing.T) {
	reg := baseRegistry(t,
		&scriptedTool{id: "fmt_check", err: errors.New("fmt binary missing")},
		&scriptedTool{id: "lint"},
	)
	provider := &scriptedProvider{responses: []string{
		`{"handler":"coding","confidence":0.9}`,
		`[{"tool":"fmt_check","confidence":0.9},{"tool":"lint","confidence":0.8}]`,
	}}
	e := newEngine(t, provider, reg, Config{})

	out, err := e.Handle(context.Background(), Request{RequestID: "r4", Message: "check my code"})
	require.NoError(t, err)
	assert.Equal(t, StateResponded, out.State)

	require.Len(t, out.Data.ToolResults, 2)
	assert.True(t, out.Data.ToolResults[0].IsError())
	assert.Equal(t, "fmt binary missing", out.Data.ToolResults[0].Error)
	assert.False(t, out.Data.ToolResults[1].IsError())
	assert.Contains(t, out.Data.Degradations, "tool:fmt_check")
	// The handler still produced the final answer.
	assert.Equal(t, "answered by coding", out.Data.Answer)
}

func TestEngine_CancellationBetweenStages(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"handler":"coding","confidence":0.9}`,
		`[]`,
	}}
	e := newEngine(t, provider, baseRegistry(t), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.Handle(ctx, Request{RequestID: "r5", Message: "q"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Empty(t, out.Data.Answer)
}

func TestEngine_EmptyRegistryFailsClassification(t *testing.T) {
	reg := registry.New(nil)
	reg.Freeze()
	e := newEngine(t, &scriptedProvider{}, reg, Config{})

	out, err := e.Handle(context.Background(), Request{RequestID: "r6", Message: "q"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, types.ErrClassificationFailure, types.GetErrorCode(err))
}

func TestAdvance_Transitions(t *testing.T) {
	s, err := advance(StateReceived, StateClassified)
	require.NoError(t, err)
	assert.Equal(t, StateClassified, s)

	// Skipping a stage is illegal.
	_, err = advance(StateReceived, StateExecuted)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	// Going backward is illegal.
	_, err = advance(StateExecuted, StateClassified)
	require.Error(t, err)

	// Failing is allowed from any non-terminal state.
	s, err = advance(StateToolsSelected, StateFailed)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, s)

	// Terminal states are final.
	_, err = advance(StateResponded, StateFailed)
	require.Error(t, err)
	_, err = advance(StateFailed, StateClassified)
	require.Error(t, err)
}
