package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javisai/javis/types"
)

type stubTool struct {
	id          string
	constraints types.ToolConstraints
}

func (t stubTool) ID() string                          { return t.id }
func (t stubTool) Description() string                 { return "stub tool " + t.id }
func (t stubTool) Constraints() types.ToolConstraints  { return t.constraints }
func (t stubTool) Process(_ context.Context, s *types.RequestState) (*types.RequestState, error) {
	return s, nil
}

func newHandler(id string) types.Handler {
	return types.HandlerFunc{
		Identifier: id,
		Desc:       "handler " + id,
		Fn: func(_ context.Context, s *types.RequestState) (*types.RequestState, error) {
			return s, nil
		},
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.RegisterHandler(newHandler("chat")))
	require.NoError(t, r.RegisterHandler(newHandler("coding")))

	h, err := r.ResolveHandler("chat")
	require.NoError(t, err)
	assert.Equal(t, "chat", h.ID())

	_, err = r.ResolveHandler("unknown")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestRegistry_DuplicateHandlerIsConflict(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.RegisterHandler(newHandler("chat")))

	err := r.RegisterHandler(newHandler("chat"))
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	// The original registration is untouched.
	h, err := r.ResolveHandler("chat")
	require.NoError(t, err)
	assert.Equal(t, "handler chat", h.Description())
}

func TestRegistry_HandlersPreserveRegistrationOrder(t *testing.T) {
	r := New(nil)
	for _, id := range []string{"chat", "coding", "dashboard", "recommendation"} {
		require.NoError(t, r.RegisterHandler(newHandler(id)))
	}

	infos := r.Handlers()
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	assert.Equal(t, []string{"chat", "coding", "dashboard", "recommendation"}, ids)
}

func TestRegistry_Tools(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.RegisterHandler(newHandler("chat")))

	require.NoError(t, r.RegisterTool("chat", stubTool{id: "web_search", constraints: types.ToolConstraints{RequiresNetwork: true}}))
	require.NoError(t, r.RegisterTool("chat", stubTool{id: "local_file"}))

	// Duplicate (handler, tool) pair.
	err := r.RegisterTool("chat", stubTool{id: "web_search"})
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	// Tool under unknown handler.
	err = r.RegisterTool("nope", stubTool{id: "x"})
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	infos := r.ToolsFor("chat")
	require.Len(t, infos, 2)
	assert.Equal(t, "web_search", infos[0].ID)
	assert.True(t, infos[0].Constraints.RequiresNetwork)
	assert.Equal(t, "local_file", infos[1].ID)

	_, err = r.ResolveTool("chat", "missing")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))

	tool, err := r.ResolveTool("chat", "local_file")
	require.NoError(t, err)
	assert.False(t, tool.Constraints().RequiresNetwork)
}

func TestRegistry_FreezeRejectsRegistration(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.RegisterHandler(newHandler("chat")))
	r.Freeze()

	err := r.RegisterHandler(newHandler("late"))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	err = r.RegisterTool("chat", stubTool{id: "late_tool"})
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))

	// Resolution still works after freeze.
	_, err = r.ResolveHandler("chat")
	assert.NoError(t, err)
}
