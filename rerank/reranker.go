package rerank

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/flockwise/agrirag/retrieval"
)

// Config 精排封装配置
type Config struct {
	// 送交服务前按 token 截断每篇文档
	TruncateTokens int `yaml:"truncate_tokens" json:"truncate_tokens"`

	// 打分缓存条目存活时间
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// 打分缓存条目上限，超限时整体清空
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// 降级为输入顺序时的回调（指标上报用），可为 nil
	OnDegrade func() `yaml:"-" json:"-"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TruncateTokens: 480,
		CacheTTL:       10 * time.Minute,
		CacheSize:      4096,
	}
}

type scoreEntry struct {
	relevance float64
	expiresAt time.Time
}

// Reranker 带截断、打分缓存与降级语义的精排封装。
// Provider 为 nil 或调用失败时按输入顺序返回。
type Reranker struct {
	provider Provider
	config   Config
	logger   *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken

	mu    sync.Mutex
	cache map[uint64]scoreEntry
}

// NewReranker 创建精排封装
func NewReranker(provider Provider, config Config, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.TruncateTokens <= 0 {
		config.TruncateTokens = def.TruncateTokens
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = def.CacheTTL
	}
	if config.CacheSize <= 0 {
		config.CacheSize = def.CacheSize
	}

	return &Reranker{
		provider: provider,
		config:   config,
		logger:   logger.With(zap.String("component", "reranker")),
		cache:    make(map[uint64]scoreEntry),
	}
}

// Rerank 以交叉编码器分数重排候选并截取前 topN。
// 不返回错误：任何失败都降级为输入顺序。
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topN int) []retrieval.Candidate {
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}
	if r.provider == nil || len(candidates) == 0 {
		return candidates[:topN]
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = r.truncate(c.Content)
	}

	scores, allCached := r.cachedScores(query, docs)
	if !allCached {
		fetched, err := r.provider.Score(ctx, query, docs, len(docs))
		if err != nil {
			r.logger.Warn("rerank provider failed, keeping fusion order",
				zap.String("provider", r.provider.Name()), zap.Error(err))
			r.degraded()
			return candidates[:topN]
		}
		if len(fetched) == 0 {
			r.logger.Warn("rerank provider returned no results, keeping fusion order",
				zap.String("provider", r.provider.Name()))
			r.degraded()
			return candidates[:topN]
		}
		scores = make([]float64, len(docs))
		seen := make([]bool, len(docs))
		for _, s := range fetched {
			if s.Index < 0 || s.Index >= len(docs) {
				continue
			}
			scores[s.Index] = s.Relevance
			seen[s.Index] = true
		}
		// 服务按 topN 截断时，未覆盖的文档保持零分排在末尾
		for i, ok := range seen {
			if ok {
				r.storeScore(query, docs[i], scores[i])
			}
		}
	}

	reranked := make([]retrieval.Candidate, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].OriginalScore = reranked[i].Score
		reranked[i].Score = scores[i]
		reranked[i].Explain("cross-encoder relevance %.4f", scores[i])
	}
	retrieval.SortByScore(reranked)

	return reranked[:topN]
}

// degraded 通知调用方本次精排退化为输入顺序
func (r *Reranker) degraded() {
	if r.config.OnDegrade != nil {
		r.config.OnDegrade()
	}
}

// cachedScores 查打分缓存；全部命中才可跳过服务调用
func (r *Reranker) cachedScores(query string, docs []string) ([]float64, bool) {
	now := time.Now()
	scores := make([]float64, len(docs))

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, doc := range docs {
		entry, ok := r.cache[scoreKey(query, doc)]
		if !ok || now.After(entry.expiresAt) {
			return nil, false
		}
		scores[i] = entry.relevance
	}
	return scores, true
}

func (r *Reranker) storeScore(query, doc string, relevance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.cache) >= r.config.CacheSize {
		r.cache = make(map[uint64]scoreEntry)
	}
	r.cache[scoreKey(query, doc)] = scoreEntry{
		relevance: relevance,
		expiresAt: time.Now().Add(r.config.CacheTTL),
	}
}

func scoreKey(query, doc string) uint64 {
	h := fnv.New64a()
	fmt.Fprint(h, query, "\x1f", doc)
	return h.Sum64()
}

// truncate 按 token 预算截断文档。
// 编码器初始化失败时回退为按字符近似（4 字符/token）。
func (r *Reranker) truncate(text string) string {
	r.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			r.logger.Warn("tiktoken init failed, falling back to character truncation", zap.Error(err))
			return
		}
		r.enc = enc
	})

	if r.enc == nil {
		limit := r.config.TruncateTokens * 4
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	tokens := r.enc.Encode(text, nil, nil)
	if len(tokens) <= r.config.TruncateTokens {
		return text
	}
	return r.enc.Decode(tokens[:r.config.TruncateTokens])
}
