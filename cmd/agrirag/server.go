package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flockwise/agrirag/cache"
	"github.com/flockwise/agrirag/config"
	"github.com/flockwise/agrirag/conversation"
	"github.com/flockwise/agrirag/embedding"
	"github.com/flockwise/agrirag/engine"
	"github.com/flockwise/agrirag/internal/database"
	"github.com/flockwise/agrirag/internal/metrics"
	"github.com/flockwise/agrirag/internal/server"
	"github.com/flockwise/agrirag/internal/telemetry"
	"github.com/flockwise/agrirag/normalize"
	"github.com/flockwise/agrirag/rerank"
	"github.com/flockwise/agrirag/retrieval"
	"github.com/flockwise/agrirag/router"
	"github.com/flockwise/agrirag/store"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 AgriRAG 的主服务器，负责装配检索管线并管理 HTTP 生命周期
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager *server.Manager

	// 检索管线
	engine *engine.Engine

	// 指标收集器
	metricsCollector *metrics.Collector

	// 遥测（可为 nil）
	otelProviders *telemetry.Providers

	// 外部连接，关闭时释放
	pool           *database.Pool
	retrievalCache *cache.Cache
	mongoStore     *store.MongoStore

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, pool *database.Pool) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
		pool:          pool,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("agrirag", s.logger)

	// 2. 装配检索管线
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init retrieval pipeline: %w", err)
	}

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
	)

	return nil
}

// =============================================================================
// 🔧 管线装配
// =============================================================================

// initPipeline 按配置装配检索管线。
// 未配置的外部件（Qdrant、Mongo、Redis、向量化、精排、LLM 分类器）
// 逐项跳过，管线照常成立并在对应环节降级。
func (s *Server) initPipeline() error {
	normalizer := normalize.NewNormalizer(normalize.BuildVocabulary(normalize.VocabularyConfig{}))
	sessions := conversation.NewManager(s.logger)
	resolver := conversation.NewResolver(conversation.DefaultResolverConfig(), normalizer, s.logger)

	// 路由器：第二层 LLM 仅在配置了 API Key 时启用
	var classifier router.ClassifierLLM
	if s.cfg.Router.LLMAPIKey != "" {
		classifier = router.NewOpenAIClassifier(router.ClassifierConfig{
			APIKey:  s.cfg.Router.LLMAPIKey,
			BaseURL: s.cfg.Router.LLMBaseURL,
			Model:   s.cfg.Router.LLMModel,
		})
		s.logger.Info("Router LLM classifier enabled", zap.String("model", s.cfg.Router.LLMModel))
	} else {
		s.logger.Info("Router LLM API key not configured, keyword-only routing")
	}

	routerCfg := router.DefaultConfig()
	routerCfg.ConfidenceMargin = s.cfg.Router.KeywordMargin
	routerCfg.EnableLLMFallback = classifier != nil
	routerCfg.LLMRateLimit = s.cfg.Router.LLMRateLimit
	routerCfg.CacheTTL = s.cfg.Router.DecisionCacheTTL
	queryRouter := router.New(routerCfg, normalizer, classifier, s.logger)

	// 双路存储：外部件缺席时回退进程内存储
	var (
		vectorStore  retrieval.VectorStore
		keywordStore retrieval.KeywordStore
		memory       *store.MemoryStore
	)
	if s.cfg.Qdrant.Host != "" {
		vectorStore = store.NewQdrantStore(store.QdrantConfig{
			Host:       s.cfg.Qdrant.Host,
			Port:       s.cfg.Qdrant.Port,
			APIKey:     s.cfg.Qdrant.APIKey,
			Collection: s.cfg.Qdrant.Collection,
		}, s.logger)
	}
	if s.cfg.Mongo.URI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoStore, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:        s.cfg.Mongo.URI,
			Database:   s.cfg.Mongo.Database,
			Collection: s.cfg.Mongo.Collection,
		}, s.logger)
		cancel()
		if err != nil {
			s.logger.Warn("MongoDB not available, keyword arm falls back to in-memory store", zap.Error(err))
		} else {
			s.mongoStore = mongoStore
			keywordStore = mongoStore
		}
	}
	if vectorStore == nil || keywordStore == nil {
		memory = store.NewMemoryStore(s.logger)
	}
	if vectorStore == nil {
		vectorStore = memory
		s.logger.Info("Qdrant not configured, vector arm uses in-memory store")
	}
	if keywordStore == nil {
		keywordStore = memory
		s.logger.Info("MongoDB not configured, keyword arm uses in-memory store")
	}

	retriever := retrieval.NewHybridRetriever(vectorStore, keywordStore, retrieval.Config{
		ArmTimeout:         s.cfg.Retrieval.ArmTimeout,
		DiversityThreshold: s.cfg.Retrieval.DiversityThreshold,
	}, s.logger)

	// 结构化数值库（连接失败时在 main 已降级为 nil）
	var structured retrieval.StructuredStore
	if s.pool != nil {
		structured = store.NewStructuredStore(s.pool.DB(), s.logger)
	}

	// 向量化服务
	var embedder embedding.Provider
	if s.cfg.Embedding.APIKey != "" {
		embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     s.cfg.Embedding.APIKey,
			BaseURL:    s.cfg.Embedding.BaseURL,
			Model:      s.cfg.Embedding.Model,
			Dimensions: s.cfg.Embedding.Dimensions,
			Timeout:    s.cfg.Embedding.Timeout,
		})
	} else {
		s.logger.Info("Embedding API key not configured, retrieval is keyword-only")
	}

	// 精排服务
	var reranker *rerank.Reranker
	if s.cfg.Rerank.Enabled && s.cfg.Rerank.APIKey != "" {
		provider := rerank.NewCohereProvider(rerank.CohereConfig{
			APIKey:  s.cfg.Rerank.APIKey,
			BaseURL: s.cfg.Rerank.BaseURL,
			Model:   s.cfg.Rerank.Model,
		})
		rerankCfg := rerank.DefaultConfig()
		rerankCfg.TruncateTokens = s.cfg.Rerank.TruncateTokens
		rerankCfg.OnDegrade = s.metricsCollector.RecordRerankFallback
		reranker = rerank.NewReranker(provider, rerankCfg, s.logger)
	} else {
		s.logger.Info("Rerank disabled, candidates keep fused order")
	}

	// 检索缓存：Redis 不可达时不中断启动
	if s.cfg.Redis.Addr != "" {
		retrievalCache, err := cache.New(cache.Config{
			Addr:                 s.cfg.Redis.Addr,
			Password:             s.cfg.Redis.Password,
			DB:                   s.cfg.Redis.DB,
			PoolSize:             s.cfg.Redis.PoolSize,
			DefaultTTL:           s.cfg.Redis.TTL,
			CompressionThreshold: s.cfg.Redis.CompressionThreshold,
			SemanticThreshold:    s.cfg.Redis.SemanticThreshold,
		}, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, retrieval cache disabled", zap.Error(err))
		} else {
			s.retrievalCache = retrievalCache
		}
	}

	eng, err := engine.New(engine.Dependencies{
		Resolver:   resolver,
		Sessions:   sessions,
		Router:     queryRouter,
		Retriever:  retriever,
		Structured: structured,
		Embedder:   embedder,
		Reranker:   reranker,
		Cache:      s.retrievalCache,
		Metrics:    s.metricsCollector,
	}, engine.Config{TopK: s.cfg.Retrieval.TopK}, s.logger)
	if err != nil {
		return err
	}
	s.engine = eng

	s.logger.Info("Retrieval pipeline assembled",
		zap.Bool("structured_store", structured != nil),
		zap.Bool("embedder", embedder != nil),
		zap.Bool("reranker", reranker != nil),
		zap.Bool("cache", s.retrievalCache != nil),
	)
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", s.handleHealthz)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ready", s.handleReadyz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	// 版本信息端点
	mux.HandleFunc("GET /version", s.handleVersion)

	// Prometheus 指标
	mux.Handle("GET /metrics", promhttp.Handler())

	// 检索 API
	mux.HandleFunc("POST /v1/retrieve", s.handleRetrieve)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleResetSession)

	// 构建中间件链
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭外部连接
	if s.retrievalCache != nil {
		if err := s.retrievalCache.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}
	if s.mongoStore != nil {
		if err := s.mongoStore.Close(ctx); err != nil {
			s.logger.Error("MongoDB close error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database close error", zap.Error(err))
		}
	}

	// 3. 关闭遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
