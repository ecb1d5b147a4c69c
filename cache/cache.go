package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flockwise/agrirag/internal/pool"
	"github.com/flockwise/agrirag/retrieval"
)

// =============================================================================
// 💾 检索结果缓存
// =============================================================================

const (
	keyPrefix   = "agrirag:retrieval:"
	semIndexKey = "agrirag:semindex"
)

// Config 缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 条目存活时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 超过该字节数的条目做 gzip 压缩
	CompressionThreshold int `yaml:"compression_threshold" json:"compression_threshold"`

	// 语义命中的最小余弦相似度
	SemanticThreshold float64 `yaml:"semantic_threshold" json:"semantic_threshold"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:                 "localhost:6379",
		DB:                   0,
		DefaultTTL:           15 * time.Minute,
		PoolSize:             10,
		CompressionThreshold: 2048,
		SemanticThreshold:    0.85,
	}
}

// entry 缓存条目
type entry struct {
	Query      string                `json:"query"`
	Candidates []retrieval.Candidate `json:"candidates"`
	CachedAt   time.Time             `json:"cached_at"`
}

// Cache Redis 检索缓存
type Cache struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
}

// New 创建检索缓存并验证连接
func New(config Config, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = def.DefaultTTL
	}
	if config.CompressionThreshold <= 0 {
		config.CompressionThreshold = def.CompressionThreshold
	}
	if config.SemanticThreshold <= 0 {
		config.SemanticThreshold = def.SemanticThreshold
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("retrieval cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.DefaultTTL),
	)

	return &Cache{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "retrieval_cache")),
	}, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 精确查找。未命中、后端故障、数据损坏一律返回 (nil, false)。
func (c *Cache) Get(ctx context.Context, query string) ([]retrieval.Candidate, bool) {
	key := cacheKey(query)

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed, treating as miss", zap.Error(err))
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.logger.Warn("cache entry corrupted, dropping", zap.String("key", key), zap.Error(err))
		c.redis.Del(ctx, key)
		return nil, false
	}

	return e.Candidates, true
}

// GetSemantic 语义查找：对缓存内全部已存查询向量求余弦相似度，
// 最优者超过阈值即复用该查询的缓存结果。
func (c *Cache) GetSemantic(ctx context.Context, queryEmbedding []float64) ([]retrieval.Candidate, bool) {
	if len(queryEmbedding) == 0 {
		return nil, false
	}

	fields, err := c.redis.HGetAll(ctx, semIndexKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("semantic index read failed, treating as miss", zap.Error(err))
		}
		return nil, false
	}

	bestKey := ""
	bestSim := 0.0
	for key, encoded := range fields {
		var stored []float64
		if err := json.Unmarshal([]byte(encoded), &stored); err != nil {
			c.redis.HDel(ctx, semIndexKey, key)
			continue
		}
		if sim := cosine(queryEmbedding, stored); sim > bestSim {
			bestSim = sim
			bestKey = key
		}
	}

	if bestKey == "" || bestSim < c.config.SemanticThreshold {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, bestKey).Bytes()
	if err != nil {
		// 条目已过期而索引未清：清理索引并按未命中处理
		c.redis.HDel(ctx, semIndexKey, bestKey)
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.redis.Del(ctx, bestKey)
		c.redis.HDel(ctx, semIndexKey, bestKey)
		return nil, false
	}

	c.logger.Debug("semantic cache hit",
		zap.Float64("similarity", bestSim),
		zap.String("cached_query", e.Query))
	return e.Candidates, true
}

// Set 写入缓存。queryEmbedding 非空时同时登记语义索引。
// 写入失败只记日志，不影响调用方。
func (c *Cache) Set(ctx context.Context, query string, queryEmbedding []float64, candidates []retrieval.Candidate) {
	key := cacheKey(query)

	data, err := json.Marshal(entry{
		Query:      query,
		Candidates: candidates,
		CachedAt:   time.Now(),
	})
	if err != nil {
		c.logger.Warn("cache entry marshal failed", zap.Error(err))
		return
	}

	if len(data) > c.config.CompressionThreshold {
		compressed, err := compress(data)
		if err == nil && len(compressed) < len(data) {
			data = compressed
		}
	}

	if err := c.redis.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
		return
	}

	if len(queryEmbedding) > 0 {
		encoded, _ := json.Marshal(queryEmbedding)
		if err := c.redis.HSet(ctx, semIndexKey, key, encoded).Err(); err != nil {
			c.logger.Warn("semantic index update failed", zap.Error(err))
		}
	}
}

// Delete 删除指定查询的缓存条目及其语义索引
func (c *Cache) Delete(ctx context.Context, query string) {
	key := cacheKey(query)
	c.redis.Del(ctx, key)
	c.redis.HDel(ctx, semIndexKey, key)
}

// Flush 清空全部缓存条目与语义索引
func (c *Cache) Flush(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.redis.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache flush scan failed: %w", err)
	}
	return c.redis.Del(ctx, semIndexKey).Err()
}

// Ping 检查 Redis 连接
func (c *Cache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.redis.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// cacheKey 规范化查询文本后取 FNV 哈希作为键
func cacheKey(query string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	h := fnv.New64a()
	io.WriteString(h, folded)
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum64())
}

// decodeEntry 识别 gzip 魔数，按需解压后反序列化
func decodeEntry(raw []byte) (*entry, error) {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip open: %w", err)
		}
		defer gr.Close()
		raw, err = io.ReadAll(gr)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &e, nil
}

func compress(data []byte) ([]byte, error) {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	gw := gzip.NewWriter(buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}

	// 缓冲区回池后会被复用，压缩结果须拷出
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// cosine 余弦相似度；维度不一致或零向量返回 0
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
