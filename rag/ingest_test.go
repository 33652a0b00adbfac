package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/redact"
	"github.com/javisai/javis/types"
)

type fakeMeta struct {
	saved   []Document
	deleted []string
}

func (f *fakeMeta) SaveDocuments(ctx context.Context, docs []Document) error {
	f.saved = append(f.saved, docs...)
	return nil
}

func (f *fakeMeta) DeleteDocuments(ctx context.Context, docIDs []string) error {
	f.deleted = append(f.deleted, docIDs...)
	return nil
}

func TestIndexer_IndexRedactsAndEmbeds(t *testing.T) {
	store := NewMemoryStore()
	meta := &fakeMeta{}
	ix := NewIndexer(&fakeEmbedder{vec: []float64{1, 0}}, store, redact.MustNew(), meta, nil)
	ctx := context.Background()

	err := ix.Index(ctx, []Document{
		{DocID: "d1", Modality: types.ModalityText, Content: "call 010-1234-5678 about the invoice"},
		{DocID: "d2", Modality: types.ModalityImage, Content: "screenshot caption", ImageB64: "cGl4"},
	})
	require.NoError(t, err)

	cands, err := store.Search(ctx, types.ModalityText, []float64{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	// PII never reaches the index.
	assert.NotContains(t, cands[0].Snippet, "010-1234-5678")
	assert.Contains(t, cands[0].Snippet, "[REDACTED:phone]")

	n, err := store.Count(ctx, types.ModalityImage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, meta.saved, 2)
}

func TestIndexer_RejectsInvalidDocuments(t *testing.T) {
	ix := NewIndexer(&fakeEmbedder{vec: []float64{1}}, NewMemoryStore(), redact.MustNew(), nil, nil)
	ctx := context.Background()

	assert.Error(t, ix.Index(ctx, []Document{{Modality: types.ModalityText, Content: "x"}}))
	assert.Error(t, ix.Index(ctx, []Document{{DocID: "d", Modality: "video", Content: "x"}}))
	assert.Error(t, ix.Index(ctx, []Document{{DocID: "d", Modality: types.ModalityImage}}))
}

func TestIndexer_PrecomputedVectorsSkipEmbedding(t *testing.T) {
	store := NewMemoryStore()
	// Embedder that fails loudly if called.
	ix := NewIndexer(&fakeEmbedder{err: assert.AnError}, store, redact.MustNew(), nil, nil)
	ctx := context.Background()

	err := ix.Index(ctx, []Document{
		{DocID: "d1", Modality: types.ModalityText, Content: "hello", Vector: []float64{0.5, 0.5}},
	})
	require.NoError(t, err)
}

func TestIndexer_Remove(t *testing.T) {
	store := NewMemoryStore()
	meta := &fakeMeta{}
	ix := NewIndexer(&fakeEmbedder{vec: []float64{1}}, store, redact.MustNew(), meta, nil)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, []Document{
		{DocID: "d1", Modality: types.ModalityText, Content: "x"},
	}))
	require.NoError(t, ix.Remove(ctx, types.ModalityText, []string{"d1"}))

	n, err := store.Count(ctx, types.ModalityText)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"d1"}, meta.deleted)
}
