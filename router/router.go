package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flockwise/agrirag/normalize"
)

// Strategy 检索策略
type Strategy string

const (
	StrategyNumeric   Strategy = "numeric"   // Structured numeric lookup
	StrategyKnowledge Strategy = "knowledge" // Knowledge-base search
	StrategyHybrid    Strategy = "hybrid"    // Both stores, fused
)

// validStrategies LLM 输出约束
var validStrategies = map[Strategy]bool{
	StrategyNumeric:   true,
	StrategyKnowledge: true,
	StrategyHybrid:    true,
}

// Evidence 产生决策的证据（可观测性用途）
type Evidence struct {
	NumericHits   []string `json:"numeric_hits,omitempty"`
	KnowledgeHits []string `json:"knowledge_hits,omitempty"`
	Comparative   bool     `json:"comparative,omitempty"`
	LLMUsed       bool     `json:"llm_used,omitempty"`
	LLMReasoning  string   `json:"llm_reasoning,omitempty"`
	FallbackUsed  bool     `json:"fallback_used,omitempty"`
}

// Decision 路由决策。创建后不可变，由检索器消费。
type Decision struct {
	Query      string    `json:"query"`
	Strategy   Strategy  `json:"strategy"`
	Confidence float64   `json:"confidence"`
	Evidence   Evidence  `json:"evidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// ClassifierLLM 第二层分类器接口
type ClassifierLLM interface {
	// Complete 生成给定提示词的补全
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config 路由器配置
type Config struct {
	// 数值类指示词（与默认表合并）
	NumericIndicators []string `yaml:"numeric_indicators" json:"numeric_indicators"`

	// 知识类指示词（与默认表合并）
	KnowledgeIndicators []string `yaml:"knowledge_indicators" json:"knowledge_indicators"`

	// 一侧计数领先多少即第一层胜出
	ConfidenceMargin int `yaml:"confidence_margin" json:"confidence_margin"`

	// 第二层 LLM 兜底
	EnableLLMFallback bool `yaml:"enable_llm_fallback" json:"enable_llm_fallback"`

	// LLM 调用速率（每秒），0 表示不限
	LLMRateLimit float64 `yaml:"llm_rate_limit" json:"llm_rate_limit"`

	// 第二层结果缓存
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultConfig 返回默认路由器配置
func DefaultConfig() Config {
	return Config{
		ConfidenceMargin:  2,
		EnableLLMFallback: true,
		LLMRateLimit:      5,
		CacheTTL:          10 * time.Minute,
	}
}

// 默认数值类指示词：精确查表型措辞
var defaultNumericIndicators = []string{
	"how much", "how many", "weight", "peso", "intake", "consumo",
	"fcr", "conversion", "conversión", "gain", "ganancia",
	"target", "standard", "expected", "average", "typical",
	"days", "dias", "días", "weeks", "semanas",
	"kg", "grams", "gramos", "percent", "%",
}

// 默认知识类指示词：因果/解释/诊断型措辞
var defaultKnowledgeIndicators = []string{
	"why", "por que", "por qué", "how to", "how do", "how can",
	"what causes", "cause", "causa", "symptom", "sintoma", "síntoma",
	"signs", "treatment", "tratamiento", "prevent", "prevenir",
	"disease", "enfermedad", "diagnose", "problem", "problema",
	"explain", "manage", "control", "ventilation", "litter",
	"vaccine", "vacuna", "stress", "lighting",
}

// 比较提示词
var comparativeCues = []string{
	" vs ", " versus ", "compare", "comparison", "difference between",
	"better than", "comparar", "diferencia",
}

// Router 查询路由器
type Router struct {
	config     Config
	normalizer *normalize.Normalizer
	llm        ClassifierLLM
	cache      *decisionCache
	limiter    *rate.Limiter
	logger     *zap.Logger

	numericIndicators   []string
	knowledgeIndicators []string
}

// decisionCache 第二层决策缓存
type decisionCache struct {
	entries map[string]*Decision
	mu      sync.RWMutex
	ttl     time.Duration
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	return &decisionCache{
		entries: make(map[string]*Decision),
		ttl:     ttl,
	}
}

// 决策缓存条目上限，超限时整体清空
const maxDecisionEntries = 4096

func (c *decisionCache) get(key string) (*Decision, bool) {
	c.mu.RLock()
	decision, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(decision.Timestamp) > c.ttl {
		// 过期即删，缓存大小不随历史查询无界增长
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && time.Since(cur.Timestamp) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return decision, true
}

func (c *decisionCache) set(key string, decision *Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxDecisionEntries {
		c.entries = make(map[string]*Decision)
	}
	c.entries[key] = decision
}

// New 创建查询路由器
func New(config Config, normalizer *normalize.Normalizer, llm ClassifierLLM, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ConfidenceMargin <= 0 {
		config.ConfidenceMargin = DefaultConfig().ConfidenceMargin
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}

	var limiter *rate.Limiter
	if config.LLMRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.LLMRateLimit), 1)
	}

	return &Router{
		config:              config,
		normalizer:          normalizer,
		llm:                 llm,
		cache:               newDecisionCache(config.CacheTTL),
		limiter:             limiter,
		logger:              logger.With(zap.String("component", "query_router")),
		numericIndicators:   mergeIndicators(defaultNumericIndicators, config.NumericIndicators),
		knowledgeIndicators: mergeIndicators(defaultKnowledgeIndicators, config.KnowledgeIndicators),
	}
}

func mergeIndicators(defaults, extra []string) []string {
	merged := append([]string(nil), defaults...)
	for _, term := range extra {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			merged = append(merged, term)
		}
	}
	return merged
}

// Route 决定查询的检索策略。
// 永不返回错误之外的 panic；所有失败路径都落到 hybrid。
func (r *Router) Route(ctx context.Context, query string) *Decision {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		r.logger.Warn("empty query routed to hybrid")
		return &Decision{
			Query:      query,
			Strategy:   StrategyHybrid,
			Confidence: 0,
			Evidence:   Evidence{FallbackUsed: true},
			Timestamp:  time.Now(),
		}
	}

	// 第一层：关键词计数
	decision := r.routeByKeywords(trimmed)
	if decision != nil {
		return decision
	}

	// 第二层：LLM 兜底（结果缓存）
	if r.config.EnableLLMFallback && r.llm != nil {
		if cached, ok := r.cache.get(trimmed); ok {
			r.logger.Debug("layer-2 cache hit", zap.String("query", trimmed))
			return cached
		}

		decision, err := r.routeWithLLM(ctx, trimmed)
		if err == nil {
			r.cache.set(trimmed, decision)
			return decision
		}
		r.logger.Warn("llm routing failed, defaulting to hybrid", zap.Error(err))
	}

	// 无信号、无 LLM：最宽召回
	return &Decision{
		Query:      trimmed,
		Strategy:   StrategyHybrid,
		Confidence: 0.5,
		Evidence:   Evidence{FallbackUsed: true},
		Timestamp:  time.Now(),
	}
}

// routeByKeywords 第一层：确定性的关键词计分。
// 胜负未分时返回 nil 交给第二层。
func (r *Router) routeByKeywords(query string) *Decision {
	folded := " " + strings.Join(strings.Fields(strings.ToLower(query)), " ") + " "

	numericHits := matchIndicators(folded, r.numericIndicators)
	knowledgeHits := matchIndicators(folded, r.knowledgeIndicators)

	evidence := Evidence{
		NumericHits:   numericHits,
		KnowledgeHits: knowledgeHits,
	}

	// 比较类查询：两个品种 + 比较提示词 → hybrid
	if r.isComparative(query, folded) {
		evidence.Comparative = true
		r.logger.Debug("comparative query, biasing hybrid",
			zap.String("query", query))
		return &Decision{
			Query:      query,
			Strategy:   StrategyHybrid,
			Confidence: 0.85,
			Evidence:   evidence,
			Timestamp:  time.Now(),
		}
	}

	diff := len(numericHits) - len(knowledgeHits)
	margin := r.config.ConfidenceMargin

	switch {
	case diff >= margin:
		return &Decision{
			Query:      query,
			Strategy:   StrategyNumeric,
			Confidence: keywordConfidence(diff),
			Evidence:   evidence,
			Timestamp:  time.Now(),
		}
	case -diff >= margin:
		return &Decision{
			Query:      query,
			Strategy:   StrategyKnowledge,
			Confidence: keywordConfidence(-diff),
			Evidence:   evidence,
			Timestamp:  time.Now(),
		}
	}

	return nil
}

// matchIndicators 返回命中的指示词（确定性：遍历顺序固定）
func matchIndicators(folded string, indicators []string) []string {
	hits := make([]string, 0, 4)
	for _, term := range indicators {
		if strings.Contains(folded, term) {
			hits = append(hits, term)
		}
	}
	return hits
}

// keywordConfidence 将计数差映射到 [0.75, 0.95]
func keywordConfidence(diff int) float64 {
	confidence := 0.7 + 0.05*float64(diff)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

// isComparative 两个已知品种被比较提示词连接
func (r *Router) isComparative(query, folded string) bool {
	hasCue := false
	for _, cue := range comparativeCues {
		if strings.Contains(folded, cue) {
			hasCue = true
			break
		}
	}
	if !hasCue {
		return false
	}
	return len(r.normalizer.Breeds(query)) >= 2
}

// routeWithLLM 第二层：约束标签的 LLM 分类
func (r *Router) routeWithLLM(ctx context.Context, query string) (*Decision, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	prompt := fmt.Sprintf(`Classify the following poultry-production question into exactly one retrieval strategy.

- numeric: the answer is a number from breed performance standards (weight, intake, FCR at an age)
- knowledge: the answer is explanatory or diagnostic text (causes, symptoms, management)
- hybrid: the answer needs both numbers and explanation

Question: %s

Respond in JSON format:
{"strategy": "numeric|knowledge|hybrid", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`, query)

	response, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm classify: %w", err)
	}

	var parsed struct {
		Strategy   string  `json:"strategy"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}

	// 从响应中截取 JSON 片段
	response = strings.TrimSpace(response)
	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		response = response[start : end+1]
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	strategy := Strategy(strings.ToLower(strings.TrimSpace(parsed.Strategy)))
	if !validStrategies[strategy] {
		// 标签越界按最宽召回处理
		strategy = StrategyHybrid
	}

	r.logger.Info("llm routing decision",
		zap.String("query", truncate(query, 50)),
		zap.String("strategy", string(strategy)),
		zap.Float64("confidence", parsed.Confidence))

	return &Decision{
		Query:      query,
		Strategy:   strategy,
		Confidence: parsed.Confidence,
		Evidence: Evidence{
			LLMUsed:      true,
			LLMReasoning: parsed.Reasoning,
		},
		Timestamp: time.Now(),
	}, nil
}

// RouteBatch 并发路由多个查询
func (r *Router) RouteBatch(ctx context.Context, queries []string) []*Decision {
	results := make([]*Decision, len(queries))
	var wg sync.WaitGroup

	for i, query := range queries {
		wg.Add(1)
		go func(idx int, q string) {
			defer wg.Done()
			results[idx] = r.Route(ctx, q)
		}(i, query)
	}

	wg.Wait()
	return results
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
