package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.stageDuration)
	assert.NotNil(t, collector.stageFailures)
	assert.NotNil(t, collector.searchDuration)
	assert.NotNil(t, collector.rerankDuration)
	assert.NotNil(t, collector.cacheHits)
}

func TestCollector_ObserveStage(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveStage("classify", 50*time.Millisecond, false)
	collector.ObserveStage("classify", 80*time.Millisecond, true)
	collector.ObserveStage("execute", 10*time.Millisecond, false)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.stageFailures.WithLabelValues("classify")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stageDuration))
}

func TestCollector_ObserveRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveRequest("RESPONDED")
	collector.ObserveRequest("RESPONDED")
	collector.ObserveRequest("FAILED")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.requestsTotal.WithLabelValues("RESPONDED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.requestsTotal.WithLabelValues("FAILED")))
}

func TestCollector_ObserveRetrieval(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveSearch("text", 20*time.Millisecond, false)
	collector.ObserveSearch("image", 30*time.Millisecond, true)
	collector.ObserveRerank(40*time.Millisecond, true)
	collector.ObserveRetrieval(100 * time.Millisecond)

	assert.Equal(t, float64(0), testutil.ToFloat64(collector.searchFailures.WithLabelValues("text")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.searchFailures.WithLabelValues("image")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.rerankFailures))
}

func TestCollector_ObserveCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveCache(true)
	collector.ObserveCache(true)
	collector.ObserveCache(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses))
}
