package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/types"
)

func planFor(tool string, args map[string]any) *types.RequestState {
	return &types.RequestState{
		Message:  "user message",
		ToolPlan: &types.ToolPlan{Choices: []types.ToolChoice{{Tool: tool, Arguments: args}}},
	}
}

func TestWebSearch_Process(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang errgroup", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"results":[
			{"title":"errgroup docs","url":"https://pkg.go.dev/golang.org/x/sync/errgroup","content":"Package errgroup"},
			{"title":"blog","url":"https://example.com","content":"concurrency patterns"}
		]}`))
	}))
	defer srv.Close()

	ws := NewWebSearch(WebSearchConfig{BaseURL: srv.URL, MaxResults: 1}, nil)
	assert.True(t, ws.Constraints().RequiresNetwork)

	st := planFor("web_search", map[string]any{"query": "golang errgroup"})
	out, err := ws.Process(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, out.Answer, "errgroup docs")
	// MaxResults trims the tail.
	assert.NotContains(t, out.Answer, "concurrency patterns")
}

func TestWebSearch_FallsBackToMessageQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ws := NewWebSearch(WebSearchConfig{BaseURL: srv.URL}, nil)
	_, err := ws.Process(context.Background(), planFor("web_search", nil))
	require.NoError(t, err)
	assert.Equal(t, "user message", gotQuery)
}

func TestWebSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := NewWebSearch(WebSearchConfig{BaseURL: srv.URL}, nil)
	_, err := ws.Process(context.Background(), planFor("web_search", nil))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolExecutionFailure, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestLocalFile_Process(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "todo.txt"), []byte("buy milk"), 0o644))

	lf := NewLocalFile(LocalFileConfig{Root: root}, nil)
	assert.False(t, lf.Constraints().RequiresNetwork)

	out, err := lf.Process(context.Background(), planFor("local_file", map[string]any{"path": "notes/todo.txt"}))
	require.NoError(t, err)
	assert.Equal(t, "buy milk", out.Answer)
}

func TestLocalFile_RejectsTraversal(t *testing.T) {
	lf := NewLocalFile(LocalFileConfig{Root: t.TempDir()}, nil)

	_, err := lf.Process(context.Background(), planFor("local_file", map[string]any{"path": "../../etc/passwd"}))
	require.Error(t, err)
	assert.Equal(t, types.ErrToolExecutionFailure, types.GetErrorCode(err))
}

func TestLocalFile_MissingPathArgument(t *testing.T) {
	lf := NewLocalFile(LocalFileConfig{Root: t.TempDir()}, nil)
	_, err := lf.Process(context.Background(), planFor("local_file", nil))
	require.Error(t, err)
}

func TestLocalFile_NotFound(t *testing.T) {
	lf := NewLocalFile(LocalFileConfig{Root: t.TempDir()}, nil)
	_, err := lf.Process(context.Background(), planFor("local_file", map[string]any{"path": "missing.txt"}))
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestLocalFile_TruncatesLargeFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), big, 0o644))

	lf := NewLocalFile(LocalFileConfig{Root: root, MaxBytes: 10}, nil)
	out, err := lf.Process(context.Background(), planFor("local_file", map[string]any{"path": "big.txt"}))
	require.NoError(t, err)
	assert.Len(t, out.Answer, 10)
}
