// Package agents provides the built-in request handlers. The chat agent is
// the retrieval-grounded default; the others are focused LLM personas.
package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/javisai/javis/rag"
	"github.com/javisai/javis/types"
)

// ChatAgent answers questions over the user's personal index by running the
// retrieval pipeline. It is the default handler for low-confidence routes.
type ChatAgent struct {
	pipeline *rag.Pipeline
	logger   *zap.Logger
}

// NewChatAgent creates the chat agent.
func NewChatAgent(pipeline *rag.Pipeline, logger *zap.Logger) *ChatAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatAgent{
		pipeline: pipeline,
		logger:   logger.With(zap.String("component", "chat_agent")),
	}
}

func (a *ChatAgent) ID() string { return "chat" }

func (a *ChatAgent) Description() string {
	return "answers questions over the user's personal multimodal index (files, web history, screenshots)"
}

// Process runs retrieval and synthesis for the request. Pipeline
// degradations carry over onto the request state.
func (a *ChatAgent) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	filter := buildSearchFilter(st)

	res, err := a.pipeline.Answer(ctx, st.Message, filter)
	if err != nil {
		return nil, err
	}

	st.Answer = res.Answer
	st.Citations = res.Citations
	st.Evidence = append(st.Evidence, res.Evidence...)
	for _, d := range res.Degradations {
		st.AddDegradation(d)
	}
	return st, nil
}

// buildSearchFilter translates the request's filters and time hint into a
// store filter. An explicit time range wins over the free-text hint.
func buildSearchFilter(st *types.RequestState) *rag.SearchFilter {
	filter := &rag.SearchFilter{UserID: st.UserID}

	var tr *types.TimeRange
	if st.Filters != nil && st.Filters.TimeRange != nil && !st.Filters.TimeRange.IsZero() {
		tr = st.Filters.TimeRange
	} else if st.TimeHint != "" {
		tr = ParseTimeHint(st.TimeHint, st.ReceivedAt)
	}
	if tr != nil {
		if !tr.From.IsZero() {
			from := tr.From
			filter.From = &from
		}
		if !tr.To.IsZero() {
			to := tr.To
			filter.To = &to
		}
	}
	if st.Filters != nil {
		filter.Sources = st.Filters.Sources
	}
	return filter
}
