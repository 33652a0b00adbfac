package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/javisai/javis/embedding"
	"github.com/javisai/javis/redact"
	"github.com/javisai/javis/types"
)

// MetadataStore persists document metadata alongside the vector index so
// provenance survives collection rebuilds. Implementations may be nil-safe
// via the Indexer, which treats a nil store as disabled.
type MetadataStore interface {
	SaveDocuments(ctx context.Context, docs []Document) error
	DeleteDocuments(ctx context.Context, docIDs []string) error
}

// Indexer ingests documents: redacts text, embeds each modality with the
// same model used at query time, and upserts into the per-modality
// collections.
type Indexer struct {
	embedder embedding.Provider
	store    VectorStore
	filter   *redact.Filter
	meta     MetadataStore
	logger   *zap.Logger
}

// NewIndexer creates an Indexer. meta may be nil.
func NewIndexer(embedder embedding.Provider, store VectorStore, filter *redact.Filter, meta MetadataStore, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		filter:   filter,
		meta:     meta,
		logger:   logger.With(zap.String("component", "indexer")),
	}
}

// Index ingests a batch of documents. Text content is redacted before it is
// embedded or stored, so PII never reaches the index. Documents arriving with
// a precomputed vector skip embedding.
func (ix *Indexer) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	byModality := make(map[types.Modality][]Document, len(types.Modalities()))
	for i, doc := range docs {
		if doc.DocID == "" {
			return fmt.Errorf("document[%d] has empty doc_id", i)
		}
		valid := false
		for _, m := range types.Modalities() {
			if doc.Modality == m {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("document[%d] has unknown modality %q", i, doc.Modality)
		}
		doc.Content = ix.filter.Mask(doc.Content)
		byModality[doc.Modality] = append(byModality[doc.Modality], doc)
	}

	for _, m := range types.Modalities() {
		batch := byModality[m]
		if len(batch) == 0 {
			continue
		}
		if err := ix.embedBatch(ctx, m, batch); err != nil {
			return err
		}
		if err := ix.store.Upsert(ctx, m, batch); err != nil {
			return fmt.Errorf("upsert %s documents: %w", m, err)
		}
		if ix.meta != nil {
			if err := ix.meta.SaveDocuments(ctx, batch); err != nil {
				return fmt.Errorf("save %s metadata: %w", m, err)
			}
		}
		ix.logger.Info("indexed documents",
			zap.String("modality", string(m)), zap.Int("count", len(batch)))
	}
	return nil
}

// embedBatch fills in missing vectors for one modality's batch.
func (ix *Indexer) embedBatch(ctx context.Context, m types.Modality, batch []Document) error {
	var inputs []string
	var targets []int
	for i, doc := range batch {
		if len(doc.Vector) > 0 {
			continue
		}
		if m == types.ModalityImage {
			if doc.ImageB64 == "" {
				return fmt.Errorf("image document %q has no image content", doc.DocID)
			}
			inputs = append(inputs, doc.ImageB64)
		} else {
			inputs = append(inputs, doc.Content)
		}
		targets = append(targets, i)
	}
	if len(inputs) == 0 {
		return nil
	}

	var vecs [][]float64
	var err error
	if m == types.ModalityImage {
		vecs, err = ix.embedder.EmbedImages(ctx, inputs)
	} else {
		vecs, err = ix.embedder.EmbedTexts(ctx, inputs)
	}
	if err != nil {
		return err
	}
	for j, idx := range targets {
		batch[idx].Vector = vecs[j]
	}
	return nil
}

// Remove deletes documents from both the vector index and the metadata
// store.
func (ix *Indexer) Remove(ctx context.Context, m types.Modality, docIDs []string) error {
	if err := ix.store.Delete(ctx, m, docIDs); err != nil {
		return err
	}
	if ix.meta != nil {
		return ix.meta.DeleteDocuments(ctx, docIDs)
	}
	return nil
}
