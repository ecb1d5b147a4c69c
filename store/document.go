package store

import (
	"github.com/flockwise/agrirag/retrieval"
)

// Document 入库文档
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
}

// toCandidate 文档转检索候选
func toCandidate(doc Document, score float64, source string) retrieval.Candidate {
	return retrieval.Candidate{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
		Score:    score,
		Source:   source,
	}
}

// matchesFilter 元数据是否满足过滤条件。
// 过滤字段为空表示不限制；文档缺失该元数据字段视为不匹配。
func matchesFilter(metadata map[string]any, filter retrieval.Filter) bool {
	if filter.IsZero() {
		return true
	}

	check := func(field, want string) bool {
		if want == "" {
			return true
		}
		got, ok := metadata[field].(string)
		return ok && got == want
	}

	return check("breed", filter.Breed) &&
		check("age_band", string(filter.AgeBand)) &&
		check("phase", filter.Phase) &&
		check("sex", string(filter.Sex)) &&
		check("metric", string(filter.Metric))
}
