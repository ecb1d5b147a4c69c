package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/cache"
	"github.com/flockwise/agrirag/conversation"
	"github.com/flockwise/agrirag/embedding"
	"github.com/flockwise/agrirag/internal/metrics"
	"github.com/flockwise/agrirag/normalize"
	"github.com/flockwise/agrirag/rerank"
	"github.com/flockwise/agrirag/retrieval"
	"github.com/flockwise/agrirag/router"
)

// =============================================================================
// 🚀 检索引擎编排
// =============================================================================

// Config 引擎配置
type Config struct {
	// 返回候选数上限
	TopK int `yaml:"top_k" json:"top_k"`

	// 异步缓存回写的超时
	CacheWriteTimeout time.Duration `yaml:"cache_write_timeout" json:"cache_write_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TopK:              10,
		CacheWriteTimeout: 2 * time.Second,
	}
}

// Dependencies 引擎依赖项。
// Resolver、Sessions、Router 与 Retriever 必填，其余为 nil 时
// 对应环节跳过（向量化、结构化库、精排、缓存、指标）。
type Dependencies struct {
	Resolver   *conversation.Resolver
	Sessions   *conversation.Manager
	Router     *router.Router
	Retriever  *retrieval.HybridRetriever
	Structured retrieval.StructuredStore
	Embedder   embedding.Provider
	Reranker   *rerank.Reranker
	Cache      *cache.Cache
	Metrics    *metrics.Collector
}

// Result 单次检索的完整结果
type Result struct {
	// 原始查询
	Query string `json:"query"`

	// 展开后实际执行的查询
	EffectiveQuery string `json:"effective_query"`

	// 是否发生了省略式展开
	Expanded bool `json:"expanded"`

	// 检索策略名（factual/diagnostic/conceptual/balanced/structured）
	Strategy string `json:"strategy,omitempty"`

	// 路由决策（缓存命中时为 nil）
	Routing *router.Decision `json:"routing,omitempty"`

	// 排序后的候选
	Candidates []retrieval.Candidate `json:"candidates"`

	// 是否来自缓存
	FromCache bool `json:"from_cache,omitempty"`

	// 两路存储同时不可用
	NoEvidence bool `json:"no_evidence,omitempty"`

	// 端到端耗时
	Elapsed time.Duration `json:"elapsed"`
}

// Engine 检索管线编排器
type Engine struct {
	config     Config
	resolver   *conversation.Resolver
	sessions   *conversation.Manager
	router     *router.Router
	retriever  *retrieval.HybridRetriever
	structured retrieval.StructuredStore
	embedder   embedding.Provider
	reranker   *rerank.Reranker
	cache      *cache.Cache
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// New 创建检索引擎
func New(deps Dependencies, config Config, logger *zap.Logger) (*Engine, error) {
	if deps.Resolver == nil || deps.Sessions == nil {
		return nil, errors.New("resolver and sessions are required")
	}
	if deps.Router == nil || deps.Retriever == nil {
		return nil, errors.New("router and retriever are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	def := DefaultConfig()
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if config.CacheWriteTimeout <= 0 {
		config.CacheWriteTimeout = def.CacheWriteTimeout
	}

	return &Engine{
		config:     config,
		resolver:   deps.Resolver,
		sessions:   deps.Sessions,
		router:     deps.Router,
		retriever:  deps.Retriever,
		structured: deps.Structured,
		embedder:   deps.Embedder,
		reranker:   deps.Reranker,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     logger.With(zap.String("component", "engine")),
	}, nil
}

// Retrieve 执行一次完整的检索。
// 仅在请求上下文取消时返回错误；其余失败都降级进结果。
func (e *Engine) Retrieve(ctx context.Context, query, sessionID string) (*Result, error) {
	start := time.Now()

	result := &Result{Query: query, EffectiveQuery: query}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		result.Candidates = []retrieval.Candidate{}
		result.Elapsed = time.Since(start)
		return result, nil
	}

	// 会话展开：省略式后续轮次借上下文补全
	session := e.sessions.Get(sessionID)
	effective, expanded := e.resolver.Expand(session, trimmed)
	result.EffectiveQuery = effective
	result.Expanded = expanded

	entities := e.resolver.ExtractEntities(effective)

	// 精确缓存
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, effective); ok {
			e.recordCacheHit("exact")
			e.updateSession(sessionID, trimmed, "", entities)
			result.FromCache = true
			result.Candidates = cached
			result.Elapsed = time.Since(start)
			return result, nil
		}
	}

	decision := e.router.Route(ctx, effective)
	result.Routing = decision
	e.recordRoute(decision)

	// 结构化数值库权威优先
	var structuredHits []retrieval.Candidate
	if e.structured != nil && decision.Strategy != router.StrategyKnowledge {
		structuredHits = e.lookupStructured(ctx, entities)
	}
	if decision.Strategy == router.StrategyNumeric && len(structuredHits) > 0 {
		out := structuredHits
		if len(out) > e.config.TopK {
			out = out[:e.config.TopK]
		}
		result.Strategy = "structured"
		result.Candidates = out
		e.writeCacheAsync(ctx, effective, nil, out)
		e.updateSession(sessionID, trimmed, string(decision.Strategy), entities)
		result.Elapsed = time.Since(start)
		return result, nil
	}

	strategy := retrieval.InferStrategy(effective, entities)
	result.Strategy = strategy.Name
	filter := retrieval.ResolveFilter(entities)

	// 向量化失败降级为纯关键词检索
	var queryVector []float64
	if e.embedder != nil {
		vec, err := e.embedder.EmbedQuery(ctx, effective)
		if err != nil {
			e.logger.Warn("embedding failed, keyword-only retrieval",
				zap.String("provider", e.embedder.Name()), zap.Error(err))
			if e.metrics != nil {
				e.metrics.RecordRetrievalError("embedding")
			}
		} else {
			queryVector = vec
		}
	}

	// 语义缓存：余弦近邻命中
	if e.cache != nil && len(queryVector) > 0 {
		if cached, ok := e.cache.GetSemantic(ctx, queryVector); ok {
			e.recordCacheHit("semantic")
			e.updateSession(sessionID, trimmed, string(decision.Strategy), entities)
			result.FromCache = true
			result.Candidates = cached
			result.Elapsed = time.Since(start)
			return result, nil
		}
	}
	if e.cache != nil && e.metrics != nil {
		e.metrics.RecordCacheMiss()
	}

	searchStart := time.Now()
	candidates, err := e.retriever.Search(ctx, queryVector, effective, e.config.TopK, strategy, filter)
	if err != nil {
		if errors.Is(err, retrieval.ErrStoresUnavailable) {
			e.logger.Error("both retrieval arms unavailable", zap.String("query", effective))
			if e.metrics != nil {
				e.metrics.RecordNoEvidence()
			}
			result.NoEvidence = true
			result.Candidates = []retrieval.Candidate{}
			result.Elapsed = time.Since(start)
			return result, nil
		}
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordRetrieval("fused", len(candidates), time.Since(searchStart))
	}

	// hybrid 路由下结构化命中排在知识候选之前
	if len(structuredHits) > 0 {
		candidates = append(structuredHits, candidates...)
	}

	if e.reranker != nil && len(candidates) > 1 {
		candidates = e.reranker.Rerank(ctx, effective, candidates, e.config.TopK)
	} else if len(candidates) > e.config.TopK {
		candidates = candidates[:e.config.TopK]
	}

	result.Candidates = candidates

	e.writeCacheAsync(ctx, effective, queryVector, candidates)
	e.updateSession(sessionID, trimmed, string(decision.Strategy), entities)

	result.Elapsed = time.Since(start)
	return result, nil
}

// ResetSession 清空指定会话的上下文
func (e *Engine) ResetSession(sessionID string) {
	if sessionID != "" {
		e.sessions.Reset(sessionID)
	}
}

// lookupStructured 查结构化数值库。失败降级为空结果。
func (e *Engine) lookupStructured(ctx context.Context, entities conversation.EntitySet) []retrieval.Candidate {
	// 没有指标也没有日龄时无从定位标准行
	if entities.Metric == normalize.MetricUnknown && entities.AgeDays == 0 {
		return nil
	}

	filter := retrieval.StructuredFilter{
		Breed:  entities.Breed,
		Sex:    entities.Sex,
		Metric: entities.Metric,
	}
	if entities.AgeDays > 0 {
		filter.AgeDaysMin = entities.AgeDays
		filter.AgeDaysMax = entities.AgeDays
	}

	hits, err := e.structured.Lookup(ctx, filter)
	if err != nil {
		e.logger.Warn("structured lookup failed", zap.Error(err))
		if e.metrics != nil {
			e.metrics.RecordRetrievalError("structured")
		}
		return nil
	}
	return hits
}

// writeCacheAsync 后台回写缓存；使用分离上下文，不随请求取消
func (e *Engine) writeCacheAsync(ctx context.Context, query string, queryVector []float64, candidates []retrieval.Candidate) {
	if e.cache == nil || len(candidates) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		writeCtx, cancel := context.WithTimeout(detached, e.config.CacheWriteTimeout)
		defer cancel()
		e.cache.Set(writeCtx, query, queryVector, candidates)
	}()
}

// updateSession 会话上下文合并；匿名请求跳过
func (e *Engine) updateSession(sessionID, rawQuery, intent string, entities conversation.EntitySet) {
	if sessionID == "" {
		return
	}
	e.sessions.Update(sessionID, rawQuery, intent, entities)
}

func (e *Engine) recordCacheHit(kind string) {
	if e.metrics != nil {
		e.metrics.RecordCacheHit(kind)
	}
}

func (e *Engine) recordRoute(decision *router.Decision) {
	if e.metrics == nil {
		return
	}
	layer := "keyword"
	switch {
	case decision.Evidence.LLMUsed:
		layer = "llm"
	case decision.Evidence.FallbackUsed:
		layer = "fallback"
	}
	e.metrics.RecordRouteDecision(string(decision.Strategy), layer)
}
