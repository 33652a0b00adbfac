// Package tools provides the built-in tool capabilities that handlers can
// plan with: web search (network) and local file reading (offline).
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	// BaseURL points at a SearXNG-compatible instance.
	BaseURL string
	// MaxResults bounds how many hits feed the answer context.
	MaxResults int
	Timeout    time.Duration
}

// WebSearch queries a SearXNG-compatible metasearch endpoint. It requires
// network access and is excluded from offline tool plans.
type WebSearch struct {
	cfg    WebSearchConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebSearch creates the web search tool.
func NewWebSearch(cfg WebSearchConfig, logger *zap.Logger) *WebSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebSearch{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "web_search_tool")),
	}
}

func (t *WebSearch) ID() string          { return "web_search" }
func (t *WebSearch) Description() string { return "searches the web for current information" }

func (t *WebSearch) Constraints() types.ToolConstraints {
	return types.ToolConstraints{RequiresNetwork: true}
}

type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Process runs the search named in the plan's arguments ("query", defaulting
// to the request message) and writes a digest of the hits to Answer.
func (t *WebSearch) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	query := st.Message
	if args := planArguments(st); args != nil {
		if q, ok := args["query"].(string); ok && strings.TrimSpace(q) != "" {
			query = q
		}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json",
		strings.TrimRight(t.cfg.BaseURL, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.ErrToolExecutionFailure, "create search request").WithCause(err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrToolExecutionFailure, "web search failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrToolExecutionFailure,
			fmt.Sprintf("web search returned status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500)
	}

	var body struct {
		Results []searxResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.ErrToolExecutionFailure, "decode search response").WithCause(err)
	}

	var sb strings.Builder
	for i, r := range body.Results {
		if i >= t.cfg.MaxResults {
			break
		}
		fmt.Fprintf(&sb, "%s (%s): %s\n", r.Title, r.URL, r.Content)
	}
	st.Answer = strings.TrimSpace(sb.String())
	return st, nil
}

// planArguments returns the arguments of the single planned choice handed to
// a tool invocation, or nil.
func planArguments(st *types.RequestState) map[string]any {
	if st.ToolPlan == nil || len(st.ToolPlan.Choices) == 0 {
		return nil
	}
	return st.ToolPlan.Choices[0].Arguments
}
