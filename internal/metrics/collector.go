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
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 路由指标
	routeDecisionsTotal *prometheus.CounterVec
	routeLLMDuration    *prometheus.HistogramVec
	routeLLMFallbacks   prometheus.Counter

	// 检索指标
	retrievalDuration   *prometheus.HistogramVec
	retrievalErrors     *prometheus.CounterVec
	retrievalCandidates *prometheus.HistogramVec
	rerankFallbacks     prometheus.Counter
	noEvidenceTotal     prometheus.Counter

	// 缓存指标
	cacheHits   *prometheus.CounterVec
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

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 路由指标
	c.routeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"strategy", "layer"}, // layer: keyword, llm, fallback
	)

	c.routeLLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_llm_duration_seconds",
			Help:      "LLM classification duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	c.routeLLMFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_llm_fallbacks_total",
			Help:      "Total number of LLM classification failures degraded to hybrid",
		},
	)

	// 检索指标
	c.retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval arm duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"arm"}, // vector, keyword, structured
	)

	c.retrievalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Total number of retrieval arm failures",
		},
		[]string{"arm"},
	)

	c.retrievalCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Number of candidates returned per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"arm"},
	)

	c.rerankFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Total number of rerank failures degraded to fusion order",
		},
	)

	c.noEvidenceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_evidence_total",
			Help:      "Total number of queries answered with no evidence",
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of retrieval cache hits",
		},
		[]string{"kind"}, // exact, semantic
	)

	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of retrieval cache misses",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🧭 路由指标记录
// =============================================================================

// RecordRouteDecision 记录路由判定
func (c *Collector) RecordRouteDecision(strategy, layer string) {
	c.routeDecisionsTotal.WithLabelValues(strategy, layer).Inc()
}

// RecordRouteLLM 记录 LLM 分类调用
func (c *Collector) RecordRouteLLM(status string, duration time.Duration) {
	c.routeLLMDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRouteLLMFallback 记录 LLM 分类降级
func (c *Collector) RecordRouteLLMFallback() {
	c.routeLLMFallbacks.Inc()
}

// =============================================================================
// 🔍 检索指标记录
// =============================================================================

// RecordRetrieval 记录一路检索
func (c *Collector) RecordRetrieval(arm string, candidates int, duration time.Duration) {
	c.retrievalDuration.WithLabelValues(arm).Observe(duration.Seconds())
	c.retrievalCandidates.WithLabelValues(arm).Observe(float64(candidates))
}

// RecordRetrievalError 记录一路检索失败
func (c *Collector) RecordRetrievalError(arm string) {
	c.retrievalErrors.WithLabelValues(arm).Inc()
}

// RecordRerankFallback 记录精排降级
func (c *Collector) RecordRerankFallback() {
	c.rerankFallbacks.Inc()
}

// RecordNoEvidence 记录无证据应答
func (c *Collector) RecordNoEvidence() {
	c.noEvidenceTotal.Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(kind string) {
	c.cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
