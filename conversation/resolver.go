package conversation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/normalize"
)

// ResolverConfig 省略检测与展开配置
type ResolverConfig struct {
	// 低于该词数且无显式实体的查询视为省略式追问
	MinTokens int `yaml:"min_tokens" json:"min_tokens"`

	// 额外的引导连接词（与默认表合并）
	ExtraConnectors []string `yaml:"extra_connectors" json:"extra_connectors"`
}

// DefaultResolverConfig 返回默认配置
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MinTokens: 4,
	}
}

// Resolver 省略式查询检测与展开
type Resolver struct {
	config     ResolverConfig
	normalizer *normalize.Normalizer
	connectors []string
	logger     *zap.Logger
}

// 默认引导连接词：位于句首即强示省略
var defaultConnectors = []string{
	"and ", "what about", "how about", "also ", "same for",
	"y ", "que tal", "qué tal", "y para", "and for",
}

// 裸代词/指示词：整句仅由这些词与疑问词构成时视为回指
var pronounTokens = map[string]bool{
	"it": true, "that": true, "this": true, "them": true, "those": true,
	"these": true, "one": true, "ones": true, "same": true,
	"eso": true, "esto": true, "ese": true, "esa": true,
}

// NewResolver 创建解析器
func NewResolver(config ResolverConfig, normalizer *normalize.Normalizer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MinTokens <= 0 {
		config.MinTokens = DefaultResolverConfig().MinTokens
	}

	connectors := append([]string(nil), defaultConnectors...)
	for _, c := range config.ExtraConnectors {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			connectors = append(connectors, c+" ")
		}
	}

	return &Resolver{
		config:     config,
		normalizer: normalizer,
		connectors: connectors,
		logger:     logger.With(zap.String("component", "context_resolver")),
	}
}

// IsCoreference 判断查询是否为省略式追问。
// 规则：句首连接词 / 裸代词指代 / 孤立问号结尾，或
// 词数低于阈值且不含显式实体（品种名、数字年龄）。
func (r *Resolver) IsCoreference(query string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if trimmed == "" {
		return false
	}

	// 1. 句首连接词
	for _, connector := range r.connectors {
		if strings.HasPrefix(trimmed, connector) {
			return true
		}
	}

	// 2. 孤立问号（"?"、"y?"）
	if trimmed == "?" {
		return true
	}

	// 3. 裸代词指代："what about that?"、"and those?"
	if r.isBarePronounQuery(trimmed) {
		return true
	}

	// 4. 过短且无显式实体
	tokens := strings.Fields(trimmed)
	if len(tokens) < r.config.MinTokens {
		if _, hasBreed := r.normalizer.Breed(query); hasBreed {
			return false
		}
		if _, hasAge := normalize.ParseAgeDays(query); hasAge {
			return false
		}
		return true
	}

	return false
}

// isBarePronounQuery 整句仅由代词、疑问词与功能词构成
func (r *Resolver) isBarePronounQuery(trimmed string) bool {
	cleaned := strings.TrimSuffix(trimmed, "?")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 || len(tokens) > 5 {
		return false
	}

	functionTokens := map[string]bool{
		"what": true, "about": true, "for": true, "and": true, "the": true,
		"of": true, "is": true, "a": true, "y": true, "para": true,
	}

	hasPronoun := false
	for _, tok := range tokens {
		switch {
		case pronounTokens[tok]:
			hasPronoun = true
		case functionTokens[tok]:
		default:
			return false
		}
	}
	return hasPronoun
}

// ExtractEntities 从查询中抽取实体。
// 每类实体首个命中生效；解析失败只是跳过该类，不报错。
func (r *Resolver) ExtractEntities(query string) EntitySet {
	entities := EntitySet{}

	if breed, ok := r.normalizer.Breed(query); ok {
		entities.Breed = breed
	}
	if days, ok := normalize.ParseAgeDays(query); ok {
		entities.AgeDays = days
	}
	entities.Sex = r.normalizer.Sex(query)
	entities.Metric = r.normalizer.Metric(query)

	return entities
}

// Expand 展开省略式查询。
// 非省略查询原样返回；省略查询用（本轮实体 ∪ 上下文实体）合成，
// 顺序为 指标 → 性别 → 品种 → 日龄限定。
// 上下文为空且本轮无实体时返回原查询并报告未展开。
func (r *Resolver) Expand(ctx *Context, query string) (string, bool) {
	if !r.IsCoreference(query) {
		return query, false
	}

	entities := r.ExtractEntities(query)

	// 追问中的裸数字按日龄解释："what about 42?" 接在谈论日龄的
	// 对话后面指的是第 42 天，而不是一个新话题
	if entities.AgeDays == 0 && ctx != nil && ctx.AgeDays > 0 {
		if days, ok := normalize.ParseBareAge(query); ok {
			entities.AgeDays = days
		}
	}

	// 合并：本轮实体优先，缺失处回退上下文
	merged := entities
	if ctx != nil {
		if merged.Breed == "" {
			merged.Breed = ctx.Breed
		}
		if merged.AgeDays == 0 {
			merged.AgeDays = ctx.AgeDays
		}
		if merged.Sex == normalize.SexUnknown {
			merged.Sex = ctx.Sex
		}
		if merged.Metric == normalize.MetricUnknown {
			merged.Metric = ctx.Metric
		}
	}

	// 两侧都没有实体：展开是空操作，不是错误
	if merged.IsEmpty() {
		r.logger.Debug("no entities to expand", zap.String("query", query))
		return query, false
	}

	expanded := r.assemble(merged)
	r.logger.Debug("query expanded",
		zap.String("original", query),
		zap.String("expanded", expanded))

	return expanded, true
}

// 指标 → 展开用语
var metricPhrases = map[normalize.Metric]string{
	normalize.MetricBodyWeight:    "body weight",
	normalize.MetricDailyGain:     "daily gain",
	normalize.MetricFeedIntake:    "feed intake",
	normalize.MetricCumFeedIntake: "cumulative feed intake",
	normalize.MetricFCR:           "feed conversion ratio",
	normalize.MetricWaterIntake:   "water intake",
	normalize.MetricMortality:     "mortality",
	normalize.MetricLivability:    "livability",
}

// 性别 → 展开用语
var sexPhrases = map[normalize.Sex]string{
	normalize.SexMale:      "male",
	normalize.SexFemale:    "female",
	normalize.SexAsHatched: "as hatched",
}

// assemble 按固定顺序拼装自包含查询
func (r *Resolver) assemble(entities EntitySet) string {
	parts := make([]string, 0, 4)

	if phrase, ok := metricPhrases[entities.Metric]; ok {
		parts = append(parts, phrase)
	}
	if phrase, ok := sexPhrases[entities.Sex]; ok {
		parts = append(parts, phrase)
	}
	if entities.Breed != "" {
		parts = append(parts, entities.Breed)
	}
	if entities.AgeDays != 0 {
		parts = append(parts, fmt.Sprintf("at %d days", entities.AgeDays))
	}

	return strings.Join(parts, " ")
}
