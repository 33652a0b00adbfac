// Package embedding provides the multimodal embedding client. Queries,
// document text, and images are projected into the same vector space by one
// model, so a text query can retrieve screenshots and photos directly. The
// model version used at query time must match the one used at index time.
package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// Provider embeds queries and documents into the shared multimodal space.
type Provider interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
	// EmbedTexts embeds document text chunks for indexing.
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
	// EmbedImages embeds base64-encoded images for indexing.
	EmbedImages(ctx context.Context, images []string) ([][]float64, error)
	// Name returns the provider name.
	Name() string
	// Dimensions returns the embedding dimensionality.
	Dimensions() int
}

// Config configures the HTTP embedding client.
type Config struct {
	BaseURL    string
	Model      string
	Dimensions int
	MaxBatch   int
	Timeout    time.Duration
}

// HTTPProvider talks to a ColQwen-style embedding service exposing
// /v1/embed/query, /v1/embed/text and /v1/embed/image.
type HTTPProvider struct {
	base   *baseClient
	model  string
	dims   int
	batch  int
	logger *zap.Logger
}

// NewHTTPProvider creates the multimodal embedding client.
func NewHTTPProvider(cfg Config, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 32
	}
	return &HTTPProvider{
		base:   newBaseClient(cfg.BaseURL, cfg.Timeout),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		batch:  cfg.MaxBatch,
		logger: logger.With(zap.String("component", "embedding_provider")),
	}
}

func (p *HTTPProvider) Name() string    { return "colqwen" }
func (p *HTTPProvider) Dimensions() int { return p.dims }

type embedRequest struct {
	Model  string   `json:"model,omitempty"`
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedQuery embeds one query string.
func (p *HTTPProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vecs, err := p.embed(ctx, "/v1/embed/query", []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds document text chunks, batching as needed.
func (p *HTTPProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	return p.embedBatched(ctx, "/v1/embed/text", texts)
}

// EmbedImages embeds base64 images, batching as needed.
func (p *HTTPProvider) EmbedImages(ctx context.Context, images []string) ([][]float64, error) {
	return p.embedBatched(ctx, "/v1/embed/image", images)
}

func (p *HTTPProvider) embedBatched(ctx context.Context, endpoint string, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(inputs))
	for start := 0; start < len(inputs); start += p.batch {
		end := start + p.batch
		if end > len(inputs) {
			end = len(inputs)
		}
		vecs, err := p.embed(ctx, endpoint, inputs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (p *HTTPProvider) embed(ctx context.Context, endpoint string, inputs []string) ([][]float64, error) {
	raw, err := p.base.doRequest(ctx, http.MethodPost, endpoint, &embedRequest{
		Model:  p.model,
		Inputs: inputs,
	})
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "embedding request failed").
			WithCause(err).WithRetryable(true)
	}

	var resp embedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "decode embedding response").WithCause(err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, types.NewError(types.ErrEmbeddingFailure,
			fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(resp.Embeddings)))
	}
	if p.dims > 0 {
		for i, v := range resp.Embeddings {
			if len(v) != p.dims {
				return nil, types.NewError(types.ErrEmbeddingFailure,
					fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(v), p.dims))
			}
		}
	}
	return resp.Embeddings, nil
}
