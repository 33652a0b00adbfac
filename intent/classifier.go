// Package intent decides which handler serves a request and which of that
// handler's tools to run. Model output is never trusted: results are
// validated against the registry, and malformed or unavailable model output
// falls back to a deterministic keyword classifier.
package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/registry"
	"github.com/javisai/javis/types"
)

// DecisionCache caches classification decisions keyed by message and
// handler set. A nil cache disables caching.
type DecisionCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration)
}

// ClassifierConfig tunes the classifier.
type ClassifierConfig struct {
	// CacheTTL bounds how long a cached decision stays valid.
	CacheTTL time.Duration
	// Keywords maps handler IDs to fallback trigger keywords. Handlers
	// without keywords can still win via registration-order default.
	Keywords map[string][]string
}

// DefaultKeywords is the built-in fallback keyword table.
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"chat":           {"find", "search", "show", "what", "when", "where", "remember", "screenshot", "document"},
		"coding":         {"code", "function", "bug", "compile", "refactor", "implement", "debug", "test"},
		"dashboard":      {"dashboard", "chart", "metric", "graph", "report", "visualize"},
		"recommendation": {"recommend", "suggest", "similar", "like", "prefer"},
	}
}

// Classifier assigns a handler to each incoming message.
type Classifier struct {
	provider llm.Provider
	reg      *registry.Registry
	cache    DecisionCache
	cfg      ClassifierConfig
	logger   *zap.Logger
}

// NewClassifier creates a Classifier. cache may be nil.
func NewClassifier(provider llm.Provider, reg *registry.Registry, cache DecisionCache, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Classifier{
		provider: provider,
		reg:      reg,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "intent_classifier")),
	}
}

// cacheKey derives a stable key from the normalized message and the sorted
// handler set, so registering a new handler invalidates old decisions.
func cacheKey(message string, handlerIDs []string) string {
	ids := append([]string(nil), handlerIDs...)
	sort.Strings(ids)
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(message))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	return "intent:" + hex.EncodeToString(h.Sum(nil))
}

const classifyPromptHeader = `Classify the user message into exactly one handler.
Respond with ONLY a JSON object: {"handler": "<id>", "confidence": <0..1>, "rationale": "<short reason>", "keywords": ["<matched terms>"]}

Handlers:`

type rawClassification struct {
	Handler    string   `json:"handler"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Keywords   []string `json:"keywords"`
}

// Classify returns the handler decision for a message. It never returns an
// unregistered handler ID; when the model misbehaves the deterministic
// keyword fallback decides instead and the result is marked FallbackUsed.
func (c *Classifier) Classify(ctx context.Context, message string) (*types.ClassificationResult, error) {
	handlers := c.reg.Handlers()
	if len(handlers) == 0 {
		return nil, types.NewError(types.ErrClassificationFailure, "no handlers registered")
	}

	ids := make([]string, len(handlers))
	for i, h := range handlers {
		ids[i] = h.ID
	}

	key := cacheKey(message, ids)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			var result types.ClassificationResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil && c.isRegistered(result.Handler) {
				c.logger.Debug("classification cache hit", zap.String("handler", result.Handler))
				return &result, nil
			}
		}
	}

	result := c.classifyLLM(ctx, message, handlers)
	if result == nil {
		result = c.classifyKeywords(message, handlers)
	}
	result.Timestamp = time.Now()

	if c.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			c.cache.Set(ctx, key, string(data), c.cfg.CacheTTL)
		}
	}
	return result, nil
}

// classifyLLM asks the model and validates its output strictly. Any
// violation returns nil so the caller falls back.
func (c *Classifier) classifyLLM(ctx context.Context, message string, handlers []registry.HandlerInfo) *types.ClassificationResult {
	var sb strings.Builder
	sb.WriteString(classifyPromptHeader)
	for _, h := range handlers {
		fmt.Fprintf(&sb, "\n- %s: %s", h.ID, h.Description)
	}

	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: sb.String()},
			{Role: llm.RoleUser, Content: message},
		},
		Temperature: 0.0,
		MaxTokens:   256,
	})
	if err != nil {
		c.logger.Warn("classification model call failed", zap.Error(err))
		return nil
	}

	raw := extractJSON(resp.Content)
	var parsed rawClassification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		c.logger.Warn("classification output is not valid JSON")
		return nil
	}
	if parsed.Handler == "" || parsed.Confidence == nil {
		c.logger.Warn("classification output missing required fields")
		return nil
	}
	if *parsed.Confidence < 0 || *parsed.Confidence > 1 {
		c.logger.Warn("classification confidence out of range", zap.Float64("confidence", *parsed.Confidence))
		return nil
	}
	if !c.isRegistered(parsed.Handler) {
		c.logger.Warn("classification named an unknown handler", zap.String("handler", parsed.Handler))
		return nil
	}

	return &types.ClassificationResult{
		Handler:    parsed.Handler,
		Confidence: *parsed.Confidence,
		Rationale:  parsed.Rationale,
		Keywords:   parsed.Keywords,
	}
}

// classifyKeywords is the deterministic fallback: the handler matching the
// most keywords wins; ties break on total matched length, then registration
// order. No matches at all selects the first registered handler with zero
// confidence.
func (c *Classifier) classifyKeywords(message string, handlers []registry.HandlerInfo) *types.ClassificationResult {
	lower := strings.ToLower(message)

	best := handlers[0].ID
	bestCount, bestLen := 0, 0
	var bestMatched []string
	for _, h := range handlers {
		var matched []string
		total := 0
		for _, kw := range c.cfg.Keywords[h.ID] {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
				total += len(kw)
			}
		}
		if len(matched) > bestCount || (len(matched) == bestCount && total > bestLen) {
			best = h.ID
			bestCount = len(matched)
			bestLen = total
			bestMatched = matched
		}
	}

	confidence := 0.0
	if bestCount > 0 {
		// Bounded heuristic confidence; enough matches saturate at 0.9.
		confidence = 0.3 + 0.2*float64(bestCount)
		if confidence > 0.9 {
			confidence = 0.9
		}
	}

	return &types.ClassificationResult{
		Handler:      best,
		Confidence:   confidence,
		Rationale:    "keyword fallback",
		Keywords:     bestMatched,
		FallbackUsed: true,
	}
}

func (c *Classifier) isRegistered(id string) bool {
	_, err := c.reg.ResolveHandler(id)
	return err == nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// first top-level JSON object in the text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
