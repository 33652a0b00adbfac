package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/types"
)

// SelectorConfig tunes the tool selector.
type SelectorConfig struct {
	// Offline excludes tools that require network access.
	Offline bool
}

// Selector plans which of the chosen handler's tools to run. The plan is
// scoped: only tools registered under that handler are eligible, and model
// output naming anything else is discarded. An empty plan is a valid outcome.
type Selector struct {
	provider llm.Provider
	reg      *registry.Registry
	cfg      SelectorConfig
	logger   *zap.Logger
}

// NewSelector creates a Selector.
func NewSelector(provider llm.Provider, reg *registry.Registry, cfg SelectorConfig, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		provider: provider,
		reg:      reg,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "tool_selector")),
	}
}

const selectPromptHeader = `Select which tools to run for the user message, if any.
Respond with ONLY a JSON array: [{"tool": "<id>", "arguments": {...}, "confidence": <0..1>}]
Return [] when no tool is needed.

Available tools:`

type rawChoice struct {
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
}

// Select returns the tool plan for the classified request. Constraint
// filtering happens before the model sees the tool list, so a constrained
// tool can never be chosen.
func (s *Selector) Select(ctx context.Context, handlerID, message string) (*types.ToolPlan, error) {
	eligible := s.eligibleTools(handlerID)
	if len(eligible) == 0 {
		return &types.ToolPlan{}, nil
	}

	var sb strings.Builder
	sb.WriteString(selectPromptHeader)
	for _, t := range eligible {
		fmt.Fprintf(&sb, "\n- %s: %s", t.ID, t.Description)
	}

	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: sb.String()},
			{Role: llm.RoleUser, Content: message},
		},
		Temperature: 0.0,
		MaxTokens:   512,
	})
	if err != nil {
		// Tool use is optional; an unreachable model degrades to no tools.
		s.logger.Warn("tool selection model call failed", zap.Error(err))
		return &types.ToolPlan{}, nil
	}

	var parsed []rawChoice
	if err := json.Unmarshal([]byte(extractJSONArray(resp.Content)), &parsed); err != nil {
		s.logger.Warn("tool selection output is not valid JSON")
		return &types.ToolPlan{}, nil
	}

	allowed := make(map[string]bool, len(eligible))
	for _, t := range eligible {
		allowed[t.ID] = true
	}

	plan := &types.ToolPlan{}
	for _, choice := range parsed {
		if !allowed[choice.Tool] {
			s.logger.Warn("model chose a tool outside the handler's scope",
				zap.String("handler", handlerID), zap.String("tool", choice.Tool))
			continue
		}
		plan.Choices = append(plan.Choices, types.ToolChoice{
			Tool:       choice.Tool,
			Arguments:  choice.Arguments,
			Confidence: choice.Confidence,
		})
	}
	return plan, nil
}

// eligibleTools lists the handler's tools after constraint filtering.
func (s *Selector) eligibleTools(handlerID string) []registry.ToolInfo {
	all := s.reg.ToolsFor(handlerID)
	if !s.cfg.Offline {
		return all
	}
	out := make([]registry.ToolInfo, 0, len(all))
	for _, t := range all {
		if t.Constraints.RequiresNetwork {
			continue
		}
		out = append(out, t)
	}
	return out
}

// extractJSONArray strips markdown fences and prose around a JSON array.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
