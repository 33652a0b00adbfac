package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/types"
)

// PersonaAgent is an LLM-backed handler with a fixed system prompt. Tool
// results gathered earlier in the workflow are appended to the prompt as
// context.
type PersonaAgent struct {
	id       string
	desc     string
	system   string
	provider llm.Provider
	logger   *zap.Logger
}

// NewPersonaAgent creates a persona handler.
func NewPersonaAgent(id, desc, system string, provider llm.Provider, logger *zap.Logger) *PersonaAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonaAgent{
		id:       id,
		desc:     desc,
		system:   system,
		provider: provider,
		logger:   logger.With(zap.String("component", "agent_"+id)),
	}
}

func (a *PersonaAgent) ID() string          { return a.id }
func (a *PersonaAgent) Description() string { return a.desc }

// Process produces the answer with a single completion.
func (a *PersonaAgent) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	var sb strings.Builder
	sb.WriteString(st.Message)
	for _, tr := range st.ToolResults {
		if tr.IsError() || tr.Output == "" {
			continue
		}
		sb.WriteString("\n\nTool ")
		sb.WriteString(tr.Tool)
		sb.WriteString(" returned:\n")
		sb.WriteString(tr.Output)
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.system},
			{Role: llm.RoleUser, Content: sb.String()},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailure, a.id+" agent completion failed").
			WithCause(err).WithRetryable(true)
	}

	st.Answer = strings.TrimSpace(resp.Content)
	return st, nil
}

// NewCodingAgent creates the code-focused handler.
func NewCodingAgent(provider llm.Provider, logger *zap.Logger) *PersonaAgent {
	return NewPersonaAgent(
		"coding",
		"writes, explains, and debugs code",
		"You are a precise senior engineer. Answer with working code and short explanations.",
		provider, logger)
}

// NewDashboardAgent creates the metrics/visualization handler.
func NewDashboardAgent(provider llm.Provider, logger *zap.Logger) *PersonaAgent {
	return NewPersonaAgent(
		"dashboard",
		"summarizes metrics and proposes visualizations",
		"You help the user understand metrics. Propose concrete charts and summarize trends.",
		provider, logger)
}

// NewRecommendationAgent creates the suggestion handler.
func NewRecommendationAgent(provider llm.Provider, logger *zap.Logger) *PersonaAgent {
	return NewPersonaAgent(
		"recommendation",
		"suggests content and actions based on the user's interests",
		"You recommend items matching the user's stated preferences. Give a short ranked list with reasons.",
		provider, logger)
}
