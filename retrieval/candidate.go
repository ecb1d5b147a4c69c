package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/flockwise/agrirag/normalize"
)

// Candidate 单个检索候选。
// Score 在加权与重排阶段被原地更新；所有权归当前持有它的管线阶段，
// 不存在跨阶段并发写。ID 在各阶段保持稳定以便缓存关联。
type Candidate struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Score         float64 `json:"score"`
	OriginalScore float64 `json:"original_score,omitempty"` // Pre-rerank score
	VectorScore   float64 `json:"vector_score,omitempty"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	VectorRank    int     `json:"vector_rank,omitempty"`  // 1-based, 0 = absent
	KeywordRank   int     `json:"keyword_rank,omitempty"` // 1-based, 0 = absent

	Source      string   `json:"source,omitempty"` // vector | keyword | structured
	Explanation []string `json:"explanation,omitempty"`
}

// Explain 追加一条打分轨迹
func (c *Candidate) Explain(format string, args ...any) {
	c.Explanation = append(c.Explanation, fmt.Sprintf(format, args...))
}

// MetaString 读取字符串元数据
func (c *Candidate) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if v, ok := c.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// SortByScore 按分数降序排序（稳定：同分保持原序）
func SortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// =============================================================================
// 存储接口（消费方定义）
// =============================================================================

// Filter 知识语料的元数据过滤。
// Sex 与 Metric 不参与存储端过滤，仅用于实体加权。
type Filter struct {
	Breed   string            `json:"breed,omitempty"`
	AgeBand normalize.AgeBand `json:"age_band,omitempty"`
	Phase   string            `json:"phase,omitempty"`
	Sex     normalize.Sex     `json:"sex,omitempty"`
	Metric  normalize.Metric  `json:"metric,omitempty"`
}

// IsZero 过滤条件是否为空
func (f Filter) IsZero() bool {
	return f.Breed == "" && f.AgeBand == "" && f.Phase == "" &&
		f.Sex == normalize.SexUnknown && f.Metric == normalize.MetricUnknown
}

// entityFields 过滤条件展开为实体加权字段
func (f Filter) entityFields() map[string]string {
	return map[string]string{
		"breed":    f.Breed,
		"age_band": string(f.AgeBand),
		"phase":    f.Phase,
		"sex":      string(f.Sex),
		"metric":   string(f.Metric),
	}
}

// StructuredFilter 结构化数值存储的查询条件
type StructuredFilter struct {
	Breed      string           `json:"breed,omitempty"`
	Sex        normalize.Sex    `json:"sex,omitempty"`
	Metric     normalize.Metric `json:"metric,omitempty"`
	AgeDaysMin int              `json:"age_days_min,omitempty"`
	AgeDaysMax int              `json:"age_days_max,omitempty"`
}

// VectorStore 向量相似度存储
type VectorStore interface {
	// SearchVector 按嵌入向量返回排序候选
	SearchVector(ctx context.Context, embedding []float64, topK int, filter Filter) ([]Candidate, error)
}

// KeywordStore 关键词/全文存储（与向量存储同语料）
type KeywordStore interface {
	// SearchKeyword 按查询文本返回排序候选
	SearchKeyword(ctx context.Context, query string, topK int, filter Filter) ([]Candidate, error)
}

// StructuredStore 结构化数值存储（品种性能标准）
type StructuredStore interface {
	// Lookup 按实体过滤返回匹配行
	Lookup(ctx context.Context, filter StructuredFilter) ([]Candidate, error)
}
