package rag

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/javisai/javis/embedding"
	"github.com/javisai/javis/redact"
	"github.com/javisai/javis/rerank"
	"github.com/javisai/javis/types"
)

// Synthesizer turns ranked evidence into a grounded answer with citations.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, evidence []types.EvidenceItem) (answer string, citations []string, err error)
}

// RetrievalObserver receives pipeline timing events. All methods must be
// safe for concurrent use.
type RetrievalObserver interface {
	ObserveSearch(modality string, d time.Duration, failed bool)
	ObserveRerank(d time.Duration, failed bool)
	ObserveRetrieval(d time.Duration)
}

// PipelineConfig tunes the retrieval pipeline.
type PipelineConfig struct {
	// KCandidates is the per-modality recall depth.
	KCandidates int
	// KFinal is the evidence budget after fusion.
	KFinal int
	// SearchTimeout bounds each per-modality search.
	SearchTimeout time.Duration
	// RerankEnabled gates the vision rerank stage.
	RerankEnabled bool
}

// Result is the pipeline output.
type Result struct {
	Answer       string               `json:"answer"`
	Citations    []string             `json:"citations,omitempty"`
	Evidence     []types.EvidenceItem `json:"evidence,omitempty"`
	Degradations []string             `json:"degradations,omitempty"`
}

// Pipeline runs embed, parallel per-modality search, fusion, conditional
// rerank, redaction, and synthesis. A failed modality degrades the result
// instead of failing it; only embedding and synthesis errors are fatal.
type Pipeline struct {
	embedder embedding.Provider
	store    VectorStore
	reranker rerank.Reranker
	filter   *redact.Filter
	synth    Synthesizer
	cfg      PipelineConfig
	observer RetrievalObserver
	logger   *zap.Logger
}

// NewPipeline assembles the retrieval pipeline. reranker and observer may be
// nil; filter and synth are required.
func NewPipeline(
	embedder embedding.Provider,
	store VectorStore,
	reranker rerank.Reranker,
	filter *redact.Filter,
	synth Synthesizer,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KCandidates <= 0 {
		cfg.KCandidates = 40
	}
	if cfg.KFinal <= 0 {
		cfg.KFinal = 10
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 5 * time.Second
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		filter:   filter,
		synth:    synth,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "rag_pipeline")),
	}
}

// WithObserver attaches a metrics observer.
func (p *Pipeline) WithObserver(o RetrievalObserver) *Pipeline {
	p.observer = o
	return p
}

// Answer runs the full pipeline for one query.
func (p *Pipeline) Answer(ctx context.Context, query string, sf *SearchFilter) (*Result, error) {
	started := time.Now()
	defer func() {
		if p.observer != nil {
			p.observer.ObserveRetrieval(time.Since(started))
		}
	}()

	queryVec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	byModality, degradations := p.searchAll(ctx, queryVec, sf)
	evidence := fuse(byModality, p.cfg.KFinal)

	if p.shouldRerank(evidence) {
		if rerr := p.applyRerank(ctx, query, evidence); rerr != nil {
			// Reranking is best-effort: keep the fused order.
			degradations = append(degradations, "rerank")
			p.logger.Warn("rerank failed, keeping fused order", zap.Error(rerr))
		}
	}

	for i := range evidence {
		evidence[i].Snippet = p.filter.Mask(evidence[i].Snippet)
	}

	answer, citations, err := p.synth.Synthesize(ctx, query, evidence)
	if err != nil {
		return nil, err
	}

	return &Result{
		Answer:       p.filter.Mask(answer),
		Citations:    citations,
		Evidence:     evidence,
		Degradations: degradations,
	}, nil
}

// searchAll queries every modality collection in parallel. A modality that
// errors or times out is recorded as degraded and contributes no candidates.
func (p *Pipeline) searchAll(ctx context.Context, vec []float64, sf *SearchFilter) (map[types.Modality][]Candidate, []string) {
	var (
		mu          sync.Mutex
		byModality  = make(map[types.Modality][]Candidate, len(types.Modalities()))
		degradedSet = make(map[types.Modality]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range types.Modalities() {
		m := m
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(gctx, p.cfg.SearchTimeout)
			defer cancel()

			started := time.Now()
			cands, err := p.store.Search(searchCtx, m, vec, p.cfg.KCandidates, sf)
			if p.observer != nil {
				p.observer.ObserveSearch(string(m), time.Since(started), err != nil)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				degradedSet[m] = true
				p.logger.Warn("modality search failed",
					zap.String("modality", string(m)), zap.Error(err))
				return nil
			}
			byModality[m] = cands
			return nil
		})
	}
	// Goroutines never return errors; failures degrade instead.
	_ = g.Wait()

	var degradations []string
	for _, m := range types.Modalities() {
		if degradedSet[m] {
			degradations = append(degradations, "search:"+string(m))
		}
	}
	return byModality, degradations
}

// shouldRerank gates the rerank stage: it runs only when the fused set holds
// at least one image candidate.
func (p *Pipeline) shouldRerank(evidence []types.EvidenceItem) bool {
	if !p.cfg.RerankEnabled || p.reranker == nil {
		return false
	}
	for _, e := range evidence {
		if e.Modality == types.ModalityImage {
			return true
		}
	}
	return false
}

// applyRerank re-scores the image candidates only. Text and screen
// candidates never reach the reranker and keep their fused score.
func (p *Pipeline) applyRerank(ctx context.Context, query string, evidence []types.EvidenceItem) error {
	var imageIdx []int
	for i, e := range evidence {
		if e.Modality == types.ModalityImage {
			imageIdx = append(imageIdx, i)
		}
	}

	images := make([]types.EvidenceItem, len(imageIdx))
	for j, i := range imageIdx {
		images[j] = evidence[i]
	}

	started := time.Now()
	scores, err := p.reranker.Rerank(ctx, query, images)
	if p.observer != nil {
		p.observer.ObserveRerank(time.Since(started), err != nil)
	}
	if err != nil {
		return err
	}
	for j, i := range imageIdx {
		s := scores[j]
		evidence[i].RerankScore = &s
	}
	sortEvidence(evidence)
	return nil
}
