package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flockwise/agrirag/conversation"
	"github.com/flockwise/agrirag/normalize"
)

// ErrStoresUnavailable 向量与关键词两路在重试后仍全部失败
var ErrStoresUnavailable = errors.New("retrieval: vector and keyword stores both unavailable")

// Config 混合检索配置
type Config struct {
	// 每路查询的超时
	ArmTimeout time.Duration `yaml:"arm_timeout" json:"arm_timeout"`

	// 去重 token 重叠阈值
	DiversityThreshold float64 `yaml:"diversity_threshold" json:"diversity_threshold"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ArmTimeout:         3 * time.Second,
		DiversityThreshold: 0.7,
	}
}

// HybridRetriever 自适应混合检索器
type HybridRetriever struct {
	vector  VectorStore
	keyword KeywordStore
	config  Config
	logger  *zap.Logger
}

// NewHybridRetriever 创建混合检索器
func NewHybridRetriever(vector VectorStore, keyword KeywordStore, config Config, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ArmTimeout <= 0 {
		config.ArmTimeout = DefaultConfig().ArmTimeout
	}
	if config.DiversityThreshold <= 0 {
		config.DiversityThreshold = DefaultConfig().DiversityThreshold
	}

	return &HybridRetriever{
		vector:  vector,
		keyword: keyword,
		config:  config,
		logger:  logger.With(zap.String("component", "hybrid_retriever")),
	}
}

// ResolveFilter 从检出实体解析存储过滤条件。
// 数字年龄按固定区间分桶为年龄带。
func ResolveFilter(entities conversation.EntitySet) Filter {
	f := Filter{
		Breed:  entities.Breed,
		Sex:    entities.Sex,
		Metric: entities.Metric,
	}
	if entities.AgeDays > 0 {
		f.AgeBand = normalize.BucketAge(entities.AgeDays)
	}
	return f
}

// Search 执行混合检索。
// 两路并发发起，超时一路则以另一路继续；出错一路以默认参数重试一次；
// 两路全败才返回 ErrStoresUnavailable，其余情况只返回可用的部分结果。
func (r *HybridRetriever) Search(
	ctx context.Context,
	queryVector []float64,
	queryText string,
	topK int,
	strategy Strategy,
	filter Filter,
) ([]Candidate, error) {
	if topK <= 0 {
		topK = 10
	}
	armK := topK * strategy.CountMultiplier
	if armK <= 0 {
		armK = topK
	}

	vectorList, keywordList := r.fanOut(ctx, queryVector, queryText, armK, filter)

	// 任一路空手而归且父上下文仍然有效：以默认参数不带过滤重试一次
	if vectorList == nil && len(queryVector) > 0 && ctx.Err() == nil {
		vectorList = r.retryArm(ctx, "vector", func(armCtx context.Context) ([]Candidate, error) {
			return r.vector.SearchVector(armCtx, queryVector, topK, Filter{})
		})
	}
	if keywordList == nil && ctx.Err() == nil {
		keywordList = r.retryArm(ctx, "keyword", func(armCtx context.Context) ([]Candidate, error) {
			return r.keyword.SearchKeyword(armCtx, queryText, topK, Filter{})
		})
	}

	if vectorList == nil && keywordList == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrStoresUnavailable
	}

	// 融合：加权 RRF（排名尺度无关）
	fused := FuseRRF(vectorList, keywordList, strategy.FusionWeight)

	// 去重
	if strategy.DiversityEnforcement {
		before := len(fused)
		fused = FilterDiverse(fused, r.config.DiversityThreshold)
		if dropped := before - len(fused); dropped > 0 {
			r.logger.Debug("diversity filter applied",
				zap.Int("dropped", dropped),
				zap.Float64("threshold", r.config.DiversityThreshold))
		}
	}

	// 实体加权
	if strategy.EntityBoost {
		fused = BoostByEntities(fused, filter.entityFields())
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}

	r.logger.Debug("hybrid search done",
		zap.String("strategy", strategy.Name),
		zap.Int("vector_results", len(vectorList)),
		zap.Int("keyword_results", len(keywordList)),
		zap.Int("returned", len(fused)))

	return fused, nil
}

// fanOut 并发发起两路查询，各自带独立超时。
// 失败的一路返回 nil 切片（空结果与失败在此区分：空结果为非 nil 空切片）。
func (r *HybridRetriever) fanOut(
	ctx context.Context,
	queryVector []float64,
	queryText string,
	armK int,
	filter Filter,
) (vectorList, keywordList []Candidate) {
	var g errgroup.Group

	if len(queryVector) > 0 {
		g.Go(func() error {
			armCtx, cancel := context.WithTimeout(ctx, r.config.ArmTimeout)
			defer cancel()

			results, err := r.vector.SearchVector(armCtx, queryVector, armK, filter)
			if err != nil {
				r.logger.Warn("vector arm failed", zap.Error(err))
				return nil
			}
			if results == nil {
				results = []Candidate{}
			}
			vectorList = results
			return nil
		})
	}

	g.Go(func() error {
		armCtx, cancel := context.WithTimeout(ctx, r.config.ArmTimeout)
		defer cancel()

		results, err := r.keyword.SearchKeyword(armCtx, queryText, armK, filter)
		if err != nil {
			r.logger.Warn("keyword arm failed", zap.Error(err))
			return nil
		}
		if results == nil {
			results = []Candidate{}
		}
		keywordList = results
		return nil
	})

	g.Wait()
	return vectorList, keywordList
}

// retryArm 失败臂的兜底重试
func (r *HybridRetriever) retryArm(ctx context.Context, arm string, call func(context.Context) ([]Candidate, error)) []Candidate {
	armCtx, cancel := context.WithTimeout(ctx, r.config.ArmTimeout)
	defer cancel()

	results, err := call(armCtx)
	if err != nil {
		r.logger.Warn("fallback retry failed", zap.String("arm", arm), zap.Error(err))
		return nil
	}
	if results == nil {
		results = []Candidate{}
	}
	r.logger.Info("fallback retry succeeded", zap.String("arm", arm), zap.Int("results", len(results)))
	return results
}
