package types

import "time"

// Provenance describes where a piece of evidence came from.
type Provenance struct {
	// Path is the local filesystem path for file-sourced documents.
	Path string `json:"path,omitempty"`
	// URL is the source address for web-history documents.
	URL string `json:"url,omitempty"`
	// Timestamp is when the document was captured or last modified.
	Timestamp time.Time `json:"timestamp,omitempty"`
	// Page is the page number inside a paginated document.
	Page int `json:"page,omitempty"`
	// BBox is the [x0, y0, x1, y1] bounding box of an image region.
	BBox []float64 `json:"bbox,omitempty"`
	// Source is the originating collector ("file", "web", "screen").
	Source string `json:"source,omitempty"`
}

// EvidenceItem is one retrieved candidate. Score is local to the item's own
// collection until fusion normalizes it; FusedScore values are comparable
// across modalities. RerankScore is set only for image candidates that went
// through the reranking pass.
type EvidenceItem struct {
	// DocID identifies the originating document chunk.
	DocID string `json:"doc_id"`
	// Modality is the collection the item was retrieved from.
	Modality Modality `json:"modality"`
	// Snippet is the redacted content excerpt.
	Snippet string `json:"snippet,omitempty"`
	// Score is the collection-local relevance score.
	Score float64 `json:"score"`
	// FusedScore is the min-max normalized score, comparable across
	// modalities. Zero until fusion runs.
	FusedScore float64 `json:"fused_score"`
	// RerankScore is the reranker's higher-fidelity score, image-only.
	RerankScore *float64 `json:"rerank_score,omitempty"`
	// Provenance carries the origin metadata.
	Provenance Provenance `json:"provenance"`
	// ImageB64 holds the base64 image content for image-modality items.
	// It feeds the reranker and the vision answerer and is not serialized
	// into responses.
	ImageB64 string `json:"-"`
}

// EffectiveScore returns the score used for final ordering: the rerank
// score when present, the fused score otherwise.
func (e EvidenceItem) EffectiveScore() float64 {
	if e.RerankScore != nil {
		return *e.RerankScore
	}
	return e.FusedScore
}

// VectorRecord is one stored vector entry: a document chunk's embedding
// plus its metadata, living in exactly one modality collection. Records are
// created by the ingestion path and are read-only from the query path.
type VectorRecord struct {
	DocID    string         `json:"doc_id"`
	Vector   []float64      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
