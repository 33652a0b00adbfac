package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GeminiConfig configures the Gemini chat provider.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// GeminiProvider implements Provider using the Gemini generateContent API.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini-backed chat provider.
func NewGeminiProvider(cfg GeminiConfig, logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "gemini_provider")),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generation_config,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finish_reason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"prompt_token_count"`
		CandidatesTokenCount int `json:"candidates_token_count"`
		TotalTokenCount      int `json:"total_token_count"`
	} `json:"usage_metadata"`
}

// Completion performs a single generateContent call.
func (p *GeminiProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := geminiGenerateRequest{}
	for _, msg := range req.Messages {
		parts := make([]geminiPart, 0, 1+len(msg.Images))
		if msg.Content != "" {
			parts = append(parts, geminiPart{Text: msg.Content})
		}
		for _, img := range msg.Images {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MIMEType: img.MIMEType,
				Data:     img.Data,
			}})
		}
		if msg.Role == RoleSystem {
			body.SystemInstruction = &geminiContent{Parts: parts}
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: parts})
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var gResp geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return &ChatResponse{
		Content:      sb.String(),
		FinishReason: gResp.Candidates[0].FinishReason,
		Model:        model,
		Usage: Usage{
			PromptTokens:     gResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gResp.UsageMetadata.TotalTokenCount,
		},
		CreatedAt: time.Now(),
	}, nil
}
