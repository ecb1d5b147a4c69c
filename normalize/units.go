package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Quantity 带单位的归一化数值
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"` // 规范单位: "g" 或 "days"
}

// ===== 年龄解析 =====

var (
	// "35 days" / "35 día(s)" / "35d" / "day 35" / "día 35"
	ageDaysPattern = regexp.MustCompile(`(?i)\b(?:day|d[ií]a)\s*(\d{1,3})\b|\b(\d{1,3})\s*(?:days?|d[ií]as?|d)\b`)
	// "5 weeks" / "5 semanas" / "5wk" / "week 5"
	ageWeeksPattern = regexp.MustCompile(`(?i)\b(?:week|semana)\s*(\d{1,2})\b|\b(\d{1,2})\s*(?:weeks?|semanas?|wks?)\b`)
	// 裸数字（上下文已明确在谈年龄时由调用方兜底使用）
	bareNumberPattern = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// ParseAgeDays 从查询文本解析日龄。
// 周龄换算为日龄（1 周 = 7 天）；返回日龄与是否命中。
func ParseAgeDays(query string) (int, bool) {
	if m := ageDaysPattern.FindStringSubmatch(query); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			return days, true
		}
	}
	if m := ageWeeksPattern.FindStringSubmatch(query); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if weeks, err := strconv.Atoi(raw); err == nil && weeks > 0 {
			return weeks * 7, true
		}
	}
	return 0, false
}

// ParseBareAge 解析无单位的裸数字作为日龄。
// 仅当查询不含其它数值语义时由上下文解析器调用；0-120 之外视为非日龄。
func ParseBareAge(query string) (int, bool) {
	m := bareNumberPattern.FindStringSubmatch(query)
	if m == nil {
		return 0, false
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days <= 0 || days > 120 {
		return 0, false
	}
	return days, true
}

// ===== 重量解析 =====

var weightPattern = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(kg|kilos?|kilogramos?|g|grams?|gramos?|lbs?|pounds?|libras?|oz|ounces?)\b`)

// 单位 → 克 换算系数
var gramFactors = map[string]float64{
	"kg": 1000, "kilo": 1000, "kilos": 1000, "kilogramo": 1000, "kilogramos": 1000,
	"g": 1, "gram": 1, "grams": 1, "gramo": 1, "gramos": 1,
	"lb": 453.592, "lbs": 453.592, "pound": 453.592, "pounds": 453.592,
	"libra": 453.592, "libras": 453.592,
	"oz": 28.3495, "ounce": 28.3495, "ounces": 28.3495,
}

// ParseWeight 从文本解析重量并归一化为克。
func ParseWeight(text string) (Quantity, bool) {
	m := weightPattern.FindStringSubmatch(text)
	if m == nil {
		return Quantity{}, false
	}

	raw := strings.ReplaceAll(m[1], ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Quantity{}, false
	}

	factor, ok := gramFactors[strings.ToLower(m[2])]
	if !ok {
		return Quantity{}, false
	}

	return Quantity{Value: value * factor, Unit: "g"}, true
}

// ===== 年龄分桶 =====

// AgeBand 生产阶段年龄带
type AgeBand string

const (
	BandStarter    AgeBand = "starter"    // 0-10 days
	BandGrower     AgeBand = "grower"     // 11-24 days
	BandFinisher   AgeBand = "finisher"   // 25-42 days
	BandWithdrawal AgeBand = "withdrawal" // 43+ days
)

// BucketAge 将日龄归入固定生产阶段年龄带。
// 结构化过滤与元数据匹配使用同一分桶，保证两侧可比。
func BucketAge(days int) AgeBand {
	switch {
	case days <= 10:
		return BandStarter
	case days <= 24:
		return BandGrower
	case days <= 42:
		return BandFinisher
	default:
		return BandWithdrawal
	}
}
