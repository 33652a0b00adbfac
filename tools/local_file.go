package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/javisai/javis/types"
)

// LocalFileConfig configures the local file tool.
type LocalFileConfig struct {
	// Root confines reads to this directory tree.
	Root string
	// MaxBytes bounds how much of a file is returned.
	MaxBytes int
}

// LocalFile reads files under a configured root. It needs no network and
// stays available in offline tool plans.
type LocalFile struct {
	cfg    LocalFileConfig
	logger *zap.Logger
}

// NewLocalFile creates the local file tool.
func NewLocalFile(cfg LocalFileConfig, logger *zap.Logger) *LocalFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 * 1024
	}
	return &LocalFile{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "local_file_tool")),
	}
}

func (t *LocalFile) ID() string          { return "local_file" }
func (t *LocalFile) Description() string { return "reads a file from the user's local workspace" }

func (t *LocalFile) Constraints() types.ToolConstraints {
	return types.ToolConstraints{RequiresNetwork: false}
}

// Process reads the file named by the "path" argument, relative to the
// configured root. Paths escaping the root are rejected.
func (t *LocalFile) Process(ctx context.Context, st *types.RequestState) (*types.RequestState, error) {
	args := planArguments(st)
	rel, _ := args["path"].(string)
	if strings.TrimSpace(rel) == "" {
		return nil, types.NewError(types.ErrToolExecutionFailure, "local_file requires a path argument")
	}

	resolved, err := t.resolve(rel)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewError(types.ErrNotFound, "file not found: "+rel)
		}
		return nil, types.NewError(types.ErrToolExecutionFailure, "read file").WithCause(err)
	}
	if len(data) > t.cfg.MaxBytes {
		data = data[:t.cfg.MaxBytes]
	}

	st.Answer = string(data)
	return st, nil
}

// resolve joins rel onto the root and rejects traversal outside it.
func (t *LocalFile) resolve(rel string) (string, error) {
	root, err := filepath.Abs(t.cfg.Root)
	if err != nil {
		return "", types.NewError(types.ErrToolExecutionFailure, "resolve root").WithCause(err)
	}
	joined := filepath.Clean(filepath.Join(root, rel))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", types.NewError(types.ErrToolExecutionFailure,
			fmt.Sprintf("path escapes workspace root: %s", rel))
	}
	return joined, nil
}
