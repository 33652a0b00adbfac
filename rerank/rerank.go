// Package rerank provides the vision-language reranker used as the second
// retrieval stage. It re-scores fused candidates against the query, reading
// image content directly rather than captions.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// Reranker re-scores candidates against a query. Scores are returned in
// candidate order; higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.EvidenceItem) ([]float64, error)
	Name() string
}

// Config configures the VLM rerank client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// VLMReranker calls a MonoVLM-style scoring service. Image candidates are
// sent as base64 content; text and screen candidates as snippets.
type VLMReranker struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewVLMReranker creates the rerank client.
func NewVLMReranker(cfg Config, logger *zap.Logger) *VLMReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &VLMReranker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "vlm_reranker")),
	}
}

func (r *VLMReranker) Name() string { return "monovlm" }

type rerankCandidate struct {
	DocID    string `json:"doc_id"`
	Modality string `json:"modality"`
	Text     string `json:"text,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`
}

type rerankRequest struct {
	Model      string            `json:"model,omitempty"`
	Query      string            `json:"query"`
	Candidates []rerankCandidate `json:"candidates"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores candidates against the query. The returned slice is aligned
// with the input order.
func (r *VLMReranker) Rerank(ctx context.Context, query string, candidates []types.EvidenceItem) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	req := rerankRequest{
		Model:      r.cfg.Model,
		Query:      query,
		Candidates: make([]rerankCandidate, len(candidates)),
	}
	for i, c := range candidates {
		rc := rerankCandidate{DocID: c.DocID, Modality: string(c.Modality)}
		if c.Modality == types.ModalityImage && c.ImageB64 != "" {
			rc.ImageB64 = c.ImageB64
		} else {
			rc.Text = c.Snippet
		}
		req.Candidates[i] = rc
	}

	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	endpoint := strings.TrimRight(r.cfg.BaseURL, "/") + "/v1/rerank"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalDegraded, "rerank service unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrRetrievalDegraded,
			fmt.Sprintf("rerank service returned status %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500)
	}

	var rResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, types.NewError(types.ErrRetrievalDegraded, "decode rerank response").WithCause(err)
	}
	if len(rResp.Scores) != len(candidates) {
		return nil, types.NewError(types.ErrRetrievalDegraded,
			fmt.Sprintf("expected %d scores, got %d", len(candidates), len(rResp.Scores)))
	}
	return rResp.Scores, nil
}
