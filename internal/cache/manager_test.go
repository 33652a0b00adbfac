package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(Config{Addr: mr.Addr(), DefaultTTL: time.Minute}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestManager_SetGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestManager_MissAndDelete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Get(ctx, "absent")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err = m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	type decision struct {
		Handler    string  `json:"handler"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, m.SetJSON(ctx, "d", decision{Handler: "chat", Confidence: 0.8}, 0))

	var got decision
	require.NoError(t, m.GetJSON(ctx, "d", &got))
	assert.Equal(t, "chat", got.Handler)
	assert.Equal(t, 0.8, got.Confidence)
}

func TestManager_TTLExpires(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_ClosedRejectsOperations(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())

	_, err := m.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestDecisionCache_AdaptsMisses(t *testing.T) {
	m, _ := newTestManager(t)
	d := NewDecisionCache(m)
	ctx := context.Background()

	_, ok := d.Get(ctx, "absent")
	assert.False(t, ok)

	d.Set(ctx, "k", "v", time.Minute)
	val, ok := d.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)
}
