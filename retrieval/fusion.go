package retrieval

import (
	"sort"
	"strings"
)

// RRFK 倒数排名融合常数。
// 信息检索中的常用取值，削弱头部排名的绝对优势。
const RRFK = 60

// FuseRRF 加权倒数排名融合。
// weight ∈ [0,1] 为向量侧权重：score = w/(k+rank_vec) + (1-w)/(k+rank_kw)。
// 排名天然无量纲，无需跨尺度校准（向量距离 vs 关键词得分）。
// 并列时先比原始分、再比向量侧排名靠前者。
func FuseRRF(vectorList, keywordList []Candidate, weight float64) []Candidate {
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	merged := make(map[string]*Candidate, len(vectorList)+len(keywordList))

	for i := range vectorList {
		c := vectorList[i]
		c.VectorRank = i + 1
		c.VectorScore = c.Score
		c.Score = 0
		merged[c.ID] = &c
	}

	for i := range keywordList {
		kw := keywordList[i]
		if existing, ok := merged[kw.ID]; ok {
			existing.KeywordRank = i + 1
			existing.KeywordScore = kw.Score
			continue
		}
		c := kw
		c.KeywordRank = i + 1
		c.KeywordScore = c.Score
		c.Score = 0
		merged[c.ID] = &c
	}

	fused := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		score := 0.0
		if c.VectorRank > 0 {
			score += weight / float64(RRFK+c.VectorRank)
		}
		if c.KeywordRank > 0 {
			score += (1 - weight) / float64(RRFK+c.KeywordRank)
		}
		c.Score = score
		c.Explain("rrf w=%.2f vec_rank=%d kw_rank=%d -> %.6f",
			weight, c.VectorRank, c.KeywordRank, score)
		fused = append(fused, *c)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		// 并列：原始分高者优先
		rawI := maxFloat(fused[i].VectorScore, fused[i].KeywordScore)
		rawJ := maxFloat(fused[j].VectorScore, fused[j].KeywordScore)
		if rawI != rawJ {
			return rawI > rawJ
		}
		// 仍并列：向量列表中排名靠前者优先（缺席按无穷大处理）
		return vectorRankOrInf(fused[i]) < vectorRankOrInf(fused[j])
	})

	return fused
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func vectorRankOrInf(c Candidate) int {
	if c.VectorRank == 0 {
		return int(^uint(0) >> 1)
	}
	return c.VectorRank
}

// =============================================================================
// 去重过滤
// =============================================================================

// FilterDiverse 贪心去重：已接受候选与新候选的 token 重叠率超过阈值
// 即丢弃新候选。首位候选永远保留。
func FilterDiverse(candidates []Candidate, overlapThreshold float64) []Candidate {
	if len(candidates) <= 1 {
		return candidates
	}

	accepted := make([]Candidate, 0, len(candidates))
	acceptedTokens := make([]map[string]bool, 0, len(candidates))

	for i, c := range candidates {
		tokens := tokenSet(c.Content)

		if i == 0 {
			accepted = append(accepted, c)
			acceptedTokens = append(acceptedTokens, tokens)
			continue
		}

		tooSimilar := false
		for _, prev := range acceptedTokens {
			if tokenOverlap(tokens, prev) > overlapThreshold {
				tooSimilar = true
				break
			}
		}
		if !tooSimilar {
			accepted = append(accepted, c)
			acceptedTokens = append(acceptedTokens, tokens)
		}
	}

	return accepted
}

// tokenSet 小写分词集合
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}

// tokenOverlap 重叠率：交集大小 / 较小集合大小
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for tok := range small {
		if large[tok] {
			intersection++
		}
	}

	return float64(intersection) / float64(len(small))
}

// =============================================================================
// 实体加权
// =============================================================================

// BoostByEntities 按匹配的实体元数据字段数加权：
// score ×= 1 + 0.1 × 匹配字段数，之后重新降序排序。
func BoostByEntities(candidates []Candidate, entityFields map[string]string) []Candidate {
	if len(entityFields) == 0 {
		return candidates
	}

	for i := range candidates {
		matched := 0
		for field, want := range entityFields {
			if want == "" {
				continue
			}
			if candidates[i].MetaString(field) == want {
				matched++
			}
		}
		if matched > 0 {
			factor := 1 + 0.1*float64(matched)
			candidates[i].Score *= factor
			candidates[i].Explain("entity boost ×%.1f (%d fields)", factor, matched)
		}
	}

	SortByScore(candidates)
	return candidates
}
