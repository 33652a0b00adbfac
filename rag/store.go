// Package rag implements the retrieval pipeline: multimodal ANN search over
// per-modality collections, score fusion, vision reranking, redaction, and
// evidence handoff to answer synthesis.
package rag

import (
	"context"
	"time"

	"github.com/javisai/javis/types"
)

// Document is one indexable unit: a text chunk, an image, or a screen
// capture. Content carries the text (or caption for images); ImageB64 carries
// pixels for image-modality documents.
type Document struct {
	DocID      string           `json:"doc_id"`
	Modality   types.Modality   `json:"modality"`
	Content    string           `json:"content,omitempty"`
	ImageB64   string           `json:"image_b64,omitempty"`
	Vector     []float64        `json:"-"`
	Provenance types.Provenance `json:"provenance"`
	UserID     string           `json:"user_id,omitempty"`
}

// Candidate is one raw ANN hit before fusion.
type Candidate struct {
	DocID      string
	Modality   types.Modality
	Score      float64
	Snippet    string
	ImageB64   string
	Provenance types.Provenance
}

// SearchFilter restricts a search to a user's slice of the index. Zero-value
// fields are not applied. From/To bound the document timestamp as [From, To).
type SearchFilter struct {
	UserID  string
	From    *time.Time
	To      *time.Time
	Sources []string
}

// VectorStore is the per-modality ANN index. Each modality is a separate
// collection sharing one embedding space.
type VectorStore interface {
	// Upsert writes documents into the modality's collection.
	Upsert(ctx context.Context, modality types.Modality, docs []Document) error
	// Search returns the top candidates for the query vector, most similar
	// first, honoring the filter.
	Search(ctx context.Context, modality types.Modality, vector []float64, limit int, filter *SearchFilter) ([]Candidate, error)
	// Delete removes documents by ID from the modality's collection.
	Delete(ctx context.Context, modality types.Modality, docIDs []string) error
	// Count reports the number of points in the modality's collection.
	Count(ctx context.Context, modality types.Modality) (int, error)
}
