// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 工作流指标
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec

	// 检索指标
	searchDuration    *prometheus.HistogramVec
	searchFailures    *prometheus.CounterVec
	rerankDuration    prometheus.Histogram
	rerankFailures    prometheus.Counter
	retrievalDuration prometheus.Histogram

	// 缓存指标
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 工作流指标
	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_stage_duration_seconds",
			Help:      "Workflow stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	c.stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_stage_failures_total",
			Help:      "Total number of failed workflow stages",
		},
		[]string{"stage"},
	)

	c.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_requests_total",
			Help:      "Total number of completed requests by final state",
		},
		[]string{"state"},
	)

	// 检索指标
	c.searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_search_duration_seconds",
			Help:      "Per-modality vector search duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"modality"},
	)

	c.searchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_search_failures_total",
			Help:      "Total number of failed per-modality vector searches",
		},
		[]string{"modality"},
	)

	c.rerankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_rerank_duration_seconds",
			Help:      "Vision rerank duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.rerankFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_rerank_failures_total",
			Help:      "Total number of failed vision rerank calls",
		},
	)

	c.retrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_pipeline_duration_seconds",
			Help:      "End-to-end retrieval pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
	)

	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 📈 观察方法
// =============================================================================

// ObserveStage 记录工作流阶段耗时与失败
func (c *Collector) ObserveStage(stage string, d time.Duration, failed bool) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		c.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveRequest 按最终状态记录请求
func (c *Collector) ObserveRequest(state string) {
	c.requestsTotal.WithLabelValues(state).Inc()
}

// ObserveSearch 记录单模态检索耗时与失败
func (c *Collector) ObserveSearch(modality string, d time.Duration, failed bool) {
	c.searchDuration.WithLabelValues(modality).Observe(d.Seconds())
	if failed {
		c.searchFailures.WithLabelValues(modality).Inc()
	}
}

// ObserveRerank 记录重排耗时与失败
func (c *Collector) ObserveRerank(d time.Duration, failed bool) {
	c.rerankDuration.Observe(d.Seconds())
	if failed {
		c.rerankFailures.Inc()
	}
}

// ObserveRetrieval 记录检索管线整体耗时
func (c *Collector) ObserveRetrieval(d time.Duration) {
	c.retrievalDuration.Observe(d.Seconds())
}

// ObserveCache 记录缓存命中或未命中
func (c *Collector) ObserveCache(hit bool) {
	if hit {
		c.cacheHits.Inc()
	} else {
		c.cacheMisses.Inc()
	}
}
