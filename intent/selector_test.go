package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/types"
)

type stubTool struct {
	id          string
	desc        string
	constraints types.ToolConstraints
}

func (t *stubTool) ID() string                         { return t.id }
func (t *stubTool) Description() string                { return t.desc }
func (t *stubTool) Constraints() types.ToolConstraints { return t.constraints }
func (t *stubTool) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	return st, nil
}

func selectorRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(nil)
	require.NoError(t, reg.RegisterHandler(newHandler("chat", "general assistant")))
	require.NoError(t, reg.RegisterHandler(newHandler("coding", "code work")))
	require.NoError(t, reg.RegisterTool("chat", &stubTool{
		id: "web_search", desc: "search the web",
		constraints: types.ToolConstraints{RequiresNetwork: true},
	}))
	require.NoError(t, reg.RegisterTool("chat", &stubTool{
		id: "local_file", desc: "read a local file",
	}))
	reg.Freeze()
	return reg
}

func TestSelector_ValidPlan(t *testing.T) {
	p := &fakeProvider{content: `[{"tool":"web_search","arguments":{"query":"weather"},"confidence":0.8}]`}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "chat", "what is the weather?")
	require.NoError(t, err)
	require.Len(t, plan.Choices, 1)
	assert.Equal(t, "web_search", plan.Choices[0].Tool)
	assert.Equal(t, "weather", plan.Choices[0].Arguments["query"])
}

func TestSelector_DropsOutOfScopeTools(t *testing.T) {
	p := &fakeProvider{content: `[{"tool":"rm_rf","confidence":0.99},{"tool":"local_file","confidence":0.7}]`}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "chat", "open my notes")
	require.NoError(t, err)
	require.Len(t, plan.Choices, 1)
	assert.Equal(t, "local_file", plan.Choices[0].Tool)
}

func TestSelector_OfflineExcludesNetworkTools(t *testing.T) {
	// The model never sees web_search offline, and naming it is discarded.
	p := &fakeProvider{content: `[{"tool":"web_search","confidence":0.9}]`}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{Offline: true}, nil)

	plan, err := s.Select(context.Background(), "chat", "search for news")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestSelector_NoToolsSkipsModel(t *testing.T) {
	p := &fakeProvider{content: "unused"}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "coding", "write a function")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 0, p.calls)
}

func TestSelector_MalformedOutputYieldsEmptyPlan(t *testing.T) {
	p := &fakeProvider{content: "I would use the web search tool"}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "chat", "q")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestSelector_ProviderErrorYieldsEmptyPlan(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "chat", "q")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestSelector_EmptyArrayIsValid(t *testing.T) {
	p := &fakeProvider{content: `[]`}
	s := NewSelector(p, selectorRegistry(t), SelectorConfig{}, nil)

	plan, err := s.Select(context.Background(), "chat", "just chatting")
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}
