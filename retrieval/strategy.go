package retrieval

import (
	"strings"

	"github.com/flockwise/agrirag/conversation"
)

// Strategy 按查询意图推断出的检索参数包。推断后不可变。
type Strategy struct {
	Name                 string  `json:"name"`
	FusionWeight         float64 `json:"fusion_weight"`    // 0-1, higher favors vector similarity
	CountMultiplier      int     `json:"count_multiplier"` // Per-arm candidate multiplier
	DiversityEnforcement bool    `json:"diversity_enforcement"`
	EntityBoost          bool    `json:"entity_boost"`
}

// 预置策略
var (
	strategyFactual = Strategy{
		Name:                 "factual",
		FusionWeight:         0.35,
		CountMultiplier:      2,
		DiversityEnforcement: false,
		EntityBoost:          true,
	}
	strategyDiagnostic = Strategy{
		Name:                 "diagnostic",
		FusionWeight:         0.65,
		CountMultiplier:      3,
		DiversityEnforcement: true,
		EntityBoost:          true,
	}
	strategyConceptual = Strategy{
		Name:                 "conceptual",
		FusionWeight:         0.75,
		CountMultiplier:      3,
		DiversityEnforcement: true,
		EntityBoost:          false,
	}
	strategyBalanced = Strategy{
		Name:                 "balanced",
		FusionWeight:         0.5,
		CountMultiplier:      2,
		DiversityEnforcement: false,
		EntityBoost:          true,
	}
)

// 词法线索表
var (
	factualCues = []string{
		"weight", "intake", "fcr", "conversion", "gain", "target",
		"standard", "expected", "average", "how much", "how many",
		"peso", "consumo",
	}
	diagnosticCues = []string{
		"symptom", "signs", "sick", "disease", "mortality", "dying",
		"lame", "panting", "diarrhea", "lesion", "outbreak", "treatment",
		"sintoma", "síntoma", "enfermedad",
	}
	conceptualCues = []string{
		"why", "how does", "how do", "explain", "what causes", "principle",
		"understand", "por que", "por qué",
	}
)

// InferStrategy 从查询文本与检出实体推断检索策略。
// 优先级 diagnostic > conceptual > factual：症状词压过解释词，
// 精确数值措辞只有在没有诊断/解释信号时才收紧检索。
func InferStrategy(queryText string, entities conversation.EntitySet) Strategy {
	folded := " " + strings.Join(strings.Fields(strings.ToLower(queryText)), " ") + " "

	if containsAny(folded, diagnosticCues) {
		return strategyDiagnostic
	}
	if containsAny(folded, conceptualCues) {
		return strategyConceptual
	}
	if containsAny(folded, factualCues) || entities.AgeDays != 0 {
		return strategyFactual
	}
	return strategyBalanced
}

func containsAny(folded string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}
