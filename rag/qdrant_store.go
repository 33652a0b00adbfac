package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// QdrantConfig configures the Qdrant-backed VectorStore.
//
// Each modality lives in its own collection named
// <CollectionPrefix>_<modality>; all collections share one vector size since
// the embedder projects every modality into the same space.
type QdrantConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	BaseURL          string        `json:"base_url,omitempty"`
	APIKey           string        `json:"api_key,omitempty"`
	CollectionPrefix string        `json:"collection_prefix"`
	VectorSize       int           `json:"vector_size"`
	Timeout          time.Duration `json:"timeout,omitempty"`
}

// QdrantStore implements VectorStore on Qdrant's REST API.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	ensureMu sync.Mutex
	ensured  map[types.Modality]bool
}

// NewQdrantStore creates a Qdrant-backed VectorStore.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "javis"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "qdrant_store")),
		ensured: make(map[types.Modality]bool),
	}
}

var qdrantNamespace = uuid.MustParse("7c9e4a2b-1f6d-4c3e-9b8a-2d5f7e1a6c4b")

// qdrantPointID derives a stable UUID from the document ID, since Qdrant
// point IDs must be UUIDs or integers.
func qdrantPointID(docID string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(docID)).String()
}

func (s *QdrantStore) collection(m types.Modality) string {
	return s.cfg.CollectionPrefix + "_" + string(m)
}

func (s *QdrantStore) ensureCollection(ctx context.Context, m types.Modality) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured[m] {
		return nil
	}
	if s.cfg.VectorSize <= 0 {
		return fmt.Errorf("qdrant vector size must be > 0")
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.collection(m)))
	err := s.doJSON(ctx, http.MethodPut, path, body, nil)
	// 409 means the collection already exists.
	if err != nil && !strings.Contains(err.Error(), "status=409") {
		return err
	}
	s.ensured[m] = true
	return nil
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upsert writes documents into the modality's collection. The batch is
// validated in full before any request leaves the process.
func (s *QdrantStore) Upsert(ctx context.Context, m types.Modality, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]qdrantPoint, 0, len(docs))
	for i, doc := range docs {
		if doc.DocID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		if len(doc.Vector) != s.cfg.VectorSize {
			return fmt.Errorf("document[%d] vector dimension mismatch: got=%d want=%d", i, len(doc.Vector), s.cfg.VectorSize)
		}
		payload := map[string]any{
			"doc_id":  doc.DocID,
			"content": doc.Content,
			"source":  doc.Provenance.Source,
		}
		if doc.UserID != "" {
			payload["user_id"] = doc.UserID
		}
		if doc.ImageB64 != "" {
			payload["image_b64"] = doc.ImageB64
		}
		if doc.Provenance.Path != "" {
			payload["path"] = doc.Provenance.Path
		}
		if doc.Provenance.URL != "" {
			payload["url"] = doc.Provenance.URL
		}
		if doc.Provenance.Page > 0 {
			payload["page"] = doc.Provenance.Page
		}
		if !doc.Provenance.Timestamp.IsZero() {
			payload["timestamp"] = doc.Provenance.Timestamp.Unix()
		}
		points = append(points, qdrantPoint{
			ID:      qdrantPointID(doc.DocID),
			Vector:  doc.Vector,
			Payload: payload,
		})
	}

	if err := s.ensureCollection(ctx, m); err != nil {
		return err
	}

	req := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: points}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.collection(m)))
	if err := s.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return err
	}
	s.logger.Debug("qdrant upsert completed",
		zap.String("modality", string(m)), zap.Int("count", len(docs)))
	return nil
}

// buildFilter translates a SearchFilter into Qdrant filter clauses.
func buildFilter(f *SearchFilter) map[string]any {
	if f == nil {
		return nil
	}
	var must []map[string]any
	if f.UserID != "" {
		must = append(must, map[string]any{
			"key":   "user_id",
			"match": map[string]any{"value": f.UserID},
		})
	}
	if f.From != nil || f.To != nil {
		rng := map[string]any{}
		if f.From != nil {
			rng["gte"] = f.From.Unix()
		}
		if f.To != nil {
			// [From, To) semantics.
			rng["lt"] = f.To.Unix()
		}
		must = append(must, map[string]any{"key": "timestamp", "range": rng})
	}
	if len(f.Sources) > 0 {
		must = append(must, map[string]any{
			"key":   "source",
			"match": map[string]any{"any": f.Sources},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

// Search returns the top candidates for the query vector.
func (s *QdrantStore) Search(ctx context.Context, m types.Modality, vector []float64, limit int, filter *SearchFilter) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}

	type qdrantHit struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var resp struct {
		Result []qdrantHit `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.collection(m)))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Result))
	for _, hit := range resp.Result {
		c := Candidate{Modality: m, Score: hit.Score}
		if hit.Payload != nil {
			c.DocID, _ = hit.Payload["doc_id"].(string)
			c.Snippet, _ = hit.Payload["content"].(string)
			c.ImageB64, _ = hit.Payload["image_b64"].(string)
			c.Provenance.Source, _ = hit.Payload["source"].(string)
			c.Provenance.Path, _ = hit.Payload["path"].(string)
			c.Provenance.URL, _ = hit.Payload["url"].(string)
			if pg, ok := hit.Payload["page"].(float64); ok {
				c.Provenance.Page = int(pg)
			}
			if ts, ok := hit.Payload["timestamp"].(float64); ok {
				c.Provenance.Timestamp = time.Unix(int64(ts), 0).UTC()
			}
		}
		if c.DocID == "" {
			c.DocID = fmt.Sprint(hit.ID)
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete removes documents by ID from the modality's collection.
func (s *QdrantStore) Delete(ctx context.Context, m types.Modality, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	points := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		points = append(points, qdrantPointID(id))
	}
	req := struct {
		Points []string `json:"points"`
	}{Points: points}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(s.collection(m)))
	return s.doJSON(ctx, http.MethodPost, path, req, nil)
}

// Count reports the number of points in the modality's collection.
func (s *QdrantStore) Count(ctx context.Context, m types.Modality) (int, error) {
	req := struct {
		Exact bool `json:"exact"`
	}{Exact: true}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", url.PathEscape(s.collection(m)))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}
