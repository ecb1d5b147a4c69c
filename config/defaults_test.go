package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 100.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 200, cfg.Server.RateLimitBurst)

	// 验证 Redis 默认值
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 15*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 2048, cfg.Redis.CompressionThreshold)
	assert.Equal(t, 0.85, cfg.Redis.SemanticThreshold)

	// 验证 Database 默认值
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	// 验证存储默认值
	assert.Equal(t, 6333, cfg.Qdrant.Port)
	assert.Equal(t, "agrirag_documents", cfg.Qdrant.Collection)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "documents", cfg.Mongo.Collection)

	// 验证模型服务默认值
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, "rerank-v3.5", cfg.Rerank.Model)
	assert.Equal(t, 480, cfg.Rerank.TruncateTokens)

	// 验证路由与检索默认值
	assert.Equal(t, 2, cfg.Router.KeywordMargin)
	assert.Equal(t, "gpt-4o-mini", cfg.Router.LLMModel)
	assert.Equal(t, 10*time.Minute, cfg.Router.DecisionCacheTTL)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.ArmTimeout)
	assert.Equal(t, 0.7, cfg.Retrieval.DiversityThreshold)

	// 验证 Log 默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// 验证遥测默认值
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "agrirag", cfg.Telemetry.ServiceName)
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
