package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/javisai/javis/types"
)

// MemoryStore is an in-memory VectorStore with exact cosine search. It backs
// tests and single-process development setups.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[types.Modality]map[string]Document
	// insertion order per modality, for deterministic tie handling
	order map[types.Modality][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[types.Modality]map[string]Document),
		order: make(map[types.Modality][]string),
	}
}

// Upsert writes documents into the modality's collection.
func (s *MemoryStore) Upsert(ctx context.Context, m types.Modality, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[m] == nil {
		s.docs[m] = make(map[string]Document)
	}
	for _, doc := range docs {
		if _, exists := s.docs[m][doc.DocID]; !exists {
			s.order[m] = append(s.order[m], doc.DocID)
		}
		s.docs[m][doc.DocID] = doc
	}
	return nil
}

// Search returns the top candidates by cosine similarity.
func (s *MemoryStore) Search(ctx context.Context, m types.Modality, vector []float64, limit int, filter *SearchFilter) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Candidate
	for _, id := range s.order[m] {
		doc := s.docs[m][id]
		if !matchesFilter(doc, filter) {
			continue
		}
		out = append(out, Candidate{
			DocID:      doc.DocID,
			Modality:   m,
			Score:      cosine(vector, doc.Vector),
			Snippet:    doc.Content,
			ImageB64:   doc.ImageB64,
			Provenance: doc.Provenance,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes documents by ID.
func (s *MemoryStore) Delete(ctx context.Context, m types.Modality, docIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range docIDs {
		if _, ok := s.docs[m][id]; !ok {
			continue
		}
		delete(s.docs[m], id)
		for i, oid := range s.order[m] {
			if oid == id {
				s.order[m] = append(s.order[m][:i], s.order[m][i+1:]...)
				break
			}
		}
	}
	return nil
}

// Count reports the number of documents in the modality's collection.
func (s *MemoryStore) Count(ctx context.Context, m types.Modality) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[m]), nil
}

func matchesFilter(doc Document, f *SearchFilter) bool {
	if f == nil {
		return true
	}
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	ts := doc.Provenance.Timestamp
	if f.From != nil && ts.Before(*f.From) {
		return false
	}
	if f.To != nil && !ts.Before(*f.To) {
		return false
	}
	if len(f.Sources) > 0 {
		found := false
		for _, src := range f.Sources {
			if doc.Provenance.Source == src {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
