// Package synthesis turns ranked retrieval evidence into a grounded answer.
// The model is instructed to answer strictly from the evidence block and to
// cite items as [E1], [E2], ...; citations are resolved back to document IDs.
package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/javisai/javis/llm"
	"github.com/javisai/javis/types"
)

// NoEvidenceAnswer is returned verbatim when retrieval produced nothing.
// It is produced without a model call, so an empty index never spends quota.
const NoEvidenceAnswer = "no evidence found"

const systemPrompt = `You are a personal assistant answering from the user's own indexed data.
Answer ONLY from the evidence items below. Every claim must cite its evidence as [E1], [E2], etc.
If the evidence does not answer the question, say so plainly. Do not invent content.`

// Config tunes the answerer.
type Config struct {
	// TokenBudget bounds the evidence block passed to the model.
	TokenBudget int
	// VisionEnabled attaches image evidence as pixels rather than captions.
	VisionEnabled bool
	// MaxImages bounds how many image attachments one request may carry.
	MaxImages int
}

// Answerer synthesizes answers with an LLM provider.
type Answerer struct {
	provider llm.Provider
	counter  TokenCounter
	cfg      Config
	logger   *zap.Logger
}

// NewAnswerer creates an Answerer. counter may be nil, in which case a
// default tiktoken counter is built.
func NewAnswerer(provider llm.Provider, counter TokenCounter, cfg Config, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = NewTokenCounter(logger)
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 6000
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 4
	}
	return &Answerer{
		provider: provider,
		counter:  counter,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "answerer")),
	}
}

var citationRe = regexp.MustCompile(`\[E(\d+)\]`)

// Synthesize produces a grounded answer and the cited document IDs, in
// order of first mention. Empty evidence short-circuits to NoEvidenceAnswer.
func (a *Answerer) Synthesize(ctx context.Context, query string, evidence []types.EvidenceItem) (string, []string, error) {
	if len(evidence) == 0 {
		return NoEvidenceAnswer, nil, nil
	}

	kept := a.fitBudget(evidence)
	userMsg := llm.Message{Role: llm.RoleUser, Content: a.buildPrompt(query, kept)}

	if a.cfg.VisionEnabled {
		attached := 0
		for _, e := range kept {
			if e.Modality == types.ModalityImage && e.ImageB64 != "" && attached < a.cfg.MaxImages {
				userMsg.Images = append(userMsg.Images, llm.ImagePart{
					MIMEType: "image/png",
					Data:     e.ImageB64,
				})
				attached++
			}
		}
	}

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			userMsg,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", nil, types.NewError(types.ErrSynthesisFailure, "answer synthesis failed").
			WithCause(err).WithRetryable(true)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", nil, types.NewError(types.ErrSynthesisFailure, "model returned an empty answer").
			WithRetryable(true)
	}
	return answer, extractCitations(answer, kept), nil
}

// fitBudget keeps the highest-ranked prefix of evidence whose rendered form
// fits the token budget. At least one item always survives.
func (a *Answerer) fitBudget(evidence []types.EvidenceItem) []types.EvidenceItem {
	used := 0
	kept := make([]types.EvidenceItem, 0, len(evidence))
	for _, e := range evidence {
		cost := a.counter.Count(renderEvidence(len(kept)+1, e))
		if len(kept) > 0 && used+cost > a.cfg.TokenBudget {
			break
		}
		kept = append(kept, e)
		used += cost
	}
	if len(kept) < len(evidence) {
		a.logger.Debug("evidence trimmed to token budget",
			zap.Int("kept", len(kept)), zap.Int("total", len(evidence)))
	}
	return kept
}

func (a *Answerer) buildPrompt(query string, evidence []types.EvidenceItem) string {
	var sb strings.Builder
	sb.WriteString("Evidence:\n")
	for i, e := range evidence {
		sb.WriteString(renderEvidence(i+1, e))
		sb.WriteByte('\n')
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return sb.String()
}

func renderEvidence(n int, e types.EvidenceItem) string {
	var origin string
	switch {
	case e.Provenance.Path != "":
		origin = e.Provenance.Path
		if e.Provenance.Page > 0 {
			origin = fmt.Sprintf("%s p.%d", origin, e.Provenance.Page)
		}
	case e.Provenance.URL != "":
		origin = e.Provenance.URL
	default:
		origin = string(e.Modality)
	}

	body := e.Snippet
	if e.Modality == types.ModalityImage && body == "" {
		body = "(image attached)"
	}
	return fmt.Sprintf("[E%d] (%s, %s) %s", n, e.Modality, origin, body)
}

// extractCitations maps [En] mentions back to document IDs, deduplicated in
// order of first mention. Out-of-range citations are dropped.
func extractCitations(answer string, evidence []types.EvidenceItem) []string {
	var citations []string
	seen := make(map[string]bool)
	for _, match := range citationRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(evidence) {
			continue
		}
		id := evidence[n-1].DocID
		if !seen[id] {
			seen[id] = true
			citations = append(citations, id)
		}
	}
	return citations
}
