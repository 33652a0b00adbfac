package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/redact"
	"github.com/javisai/javis/types"
)

type fakeEmbedder struct {
	vec []float64
	err error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, q string) ([]float64, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fakeEmbedder) EmbedImages(ctx context.Context, images []string) ([][]float64, error) {
	return f.EmbedTexts(ctx, images)
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type fakeSynth struct {
	gotEvidence []types.EvidenceItem
	answer      string
	err         error
}

func (f *fakeSynth) Synthesize(ctx context.Context, query string, evidence []types.EvidenceItem) (string, []string, error) {
	f.gotEvidence = evidence
	if f.err != nil {
		return "", nil, f.err
	}
	if len(evidence) == 0 {
		return "no evidence found", nil, nil
	}
	citations := make([]string, len(evidence))
	for i, e := range evidence {
		citations[i] = e.DocID
	}
	return f.answer, citations, nil
}

type fakeReranker struct {
	calls  int
	got    []types.EvidenceItem
	scores []float64
	err    error
}

func (f *fakeReranker) Name() string { return "fake-rerank" }

func (f *fakeReranker) Rerank(ctx context.Context, query string, cands []types.EvidenceItem) ([]float64, error) {
	f.calls++
	f.got = append([]types.EvidenceItem(nil), cands...)
	if f.err != nil {
		return nil, f.err
	}
	return f.scores[:len(cands)], nil
}

// failingStore fails searches for one modality and delegates the rest.
type failingStore struct {
	VectorStore
	fail types.Modality
}

func (s *failingStore) Search(ctx context.Context, m types.Modality, vec []float64, limit int, f *SearchFilter) ([]Candidate, error) {
	if m == s.fail {
		return nil, errors.New("collection unavailable")
	}
	return s.VectorStore.Search(ctx, m, vec, limit, f)
}

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, types.ModalityText, []Document{
		{DocID: "txt-1", Modality: types.ModalityText, Vector: []float64{1, 0}, Content: "the receipt total was 42"},
		{DocID: "txt-2", Modality: types.ModalityText, Vector: []float64{0.9, 0.1}, Content: "email alice@example.com for details"},
	}))
	require.NoError(t, s.Upsert(ctx, types.ModalityImage, []Document{
		{DocID: "img-1", Modality: types.ModalityImage, Vector: []float64{0.8, 0.2}, Content: "receipt photo", ImageB64: "cGl4"},
	}))
	return s
}

func newTestPipeline(store VectorStore, rr *fakeReranker, synth *fakeSynth, rerankOn bool) *Pipeline {
	p := NewPipeline(
		&fakeEmbedder{vec: []float64{1, 0}},
		store,
		rr,
		redact.MustNew(),
		synth,
		PipelineConfig{KCandidates: 10, KFinal: 5, RerankEnabled: rerankOn},
		nil,
	)
	return p
}

func TestPipeline_RerankRunsWithImageCandidate(t *testing.T) {
	rr := &fakeReranker{scores: []float64{1.5}}
	synth := &fakeSynth{answer: "the total was 42"}
	p := newTestPipeline(seedStore(t), rr, synth, true)

	res, err := p.Answer(context.Background(), "what was the receipt total?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rr.calls)
	assert.Empty(t, res.Degradations)

	// The reranker scored the image above every fused score, so it leads.
	require.NotEmpty(t, res.Evidence)
	assert.Equal(t, "img-1", res.Evidence[0].DocID)
	require.NotNil(t, res.Evidence[0].RerankScore)
}

func TestPipeline_RerankScoresImagesOnly(t *testing.T) {
	rr := &fakeReranker{scores: []float64{0.7}}
	synth := &fakeSynth{answer: "ok"}
	p := newTestPipeline(seedStore(t), rr, synth, true)

	res, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)

	// Only the image candidate reaches the reranker.
	require.Len(t, rr.got, 1)
	assert.Equal(t, "img-1", rr.got[0].DocID)

	for _, e := range res.Evidence {
		if e.Modality == types.ModalityImage {
			require.NotNil(t, e.RerankScore)
			assert.Equal(t, 0.7, *e.RerankScore)
		} else {
			assert.Nil(t, e.RerankScore, "non-image evidence keeps its fused score")
		}
	}
}

func TestPipeline_RerankSkippedWithoutImages(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), types.ModalityText, []Document{
		{DocID: "t1", Modality: types.ModalityText, Vector: []float64{1, 0}, Content: "plain text"},
	}))

	rr := &fakeReranker{scores: []float64{1, 1, 1}}
	p := newTestPipeline(s, rr, &fakeSynth{answer: "ok"}, true)

	_, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rr.calls, "rerank must not run for text-only evidence")
}

func TestPipeline_RerankFailureKeepsFusedOrder(t *testing.T) {
	rr := &fakeReranker{err: errors.New("vlm down")}
	synth := &fakeSynth{answer: "ok"}
	p := newTestPipeline(seedStore(t), rr, synth, true)

	res, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Degradations, "rerank")
	for _, e := range res.Evidence {
		assert.Nil(t, e.RerankScore, "fused order must survive a rerank failure")
	}
}

func TestPipeline_DegradedModality(t *testing.T) {
	store := &failingStore{VectorStore: seedStore(t), fail: types.ModalityImage}
	synth := &fakeSynth{answer: "ok"}
	p := newTestPipeline(store, &fakeReranker{scores: []float64{1, 1, 1}}, synth, true)

	res, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Degradations, "search:image")
	for _, e := range res.Evidence {
		assert.NotEqual(t, types.ModalityImage, e.Modality)
	}
}

func TestPipeline_EmptyIndexYieldsNoEvidenceAnswer(t *testing.T) {
	synth := &fakeSynth{answer: "unused"}
	p := newTestPipeline(NewMemoryStore(), &fakeReranker{}, synth, true)

	res, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "no evidence found", res.Answer)
	assert.Empty(t, res.Evidence)
	assert.Empty(t, res.Citations)
}

func TestPipeline_RedactsSnippetsAndAnswer(t *testing.T) {
	synth := &fakeSynth{answer: "reach alice@example.com for the receipt"}
	p := newTestPipeline(seedStore(t), &fakeReranker{scores: []float64{1, 1, 1}}, synth, false)

	res, err := p.Answer(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.NotContains(t, res.Answer, "alice@example.com")
	assert.Contains(t, res.Answer, "[REDACTED:email]")
	for _, e := range res.Evidence {
		assert.NotContains(t, e.Snippet, "alice@example.com")
	}
}

func TestPipeline_EmbedFailureIsFatal(t *testing.T) {
	p := NewPipeline(
		&fakeEmbedder{err: fmt.Errorf("embedder down")},
		NewMemoryStore(),
		nil,
		redact.MustNew(),
		&fakeSynth{},
		PipelineConfig{},
		nil,
	)
	_, err := p.Answer(context.Background(), "q", nil)
	require.Error(t, err)
}
