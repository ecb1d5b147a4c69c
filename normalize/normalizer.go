package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Metric 规范化后的指标类型
type Metric string

const (
	MetricBodyWeight     Metric = "body_weight"      // Body weight at age
	MetricDailyGain      Metric = "daily_gain"       // Average daily gain
	MetricFeedIntake     Metric = "feed_intake"      // Daily feed intake
	MetricCumFeedIntake  Metric = "cum_feed_intake"  // Cumulative feed intake
	MetricFCR            Metric = "fcr"              // Feed conversion ratio
	MetricWaterIntake    Metric = "water_intake"     // Daily water intake
	MetricMortality      Metric = "mortality"        // Cumulative mortality
	MetricLivability     Metric = "livability"       // Livability percentage
	MetricUnknown        Metric = ""                 // No metric detected
)

// Sex 规范化后的性别/分群
type Sex string

const (
	SexMale      Sex = "male"
	SexFemale    Sex = "female"
	SexAsHatched Sex = "as_hatched" // Mixed-sex flock
	SexUnknown   Sex = ""
)

// VocabularyConfig 词汇表配置（可增补或覆盖默认表）
type VocabularyConfig struct {
	// 额外的指标叫法 → 规范指标
	MetricTerms map[string]string `yaml:"metric_terms" json:"metric_terms"`

	// 额外的品种别名 → 规范品种名
	BreedAliases map[string]string `yaml:"breed_aliases" json:"breed_aliases"`

	// 额外的性别叫法 → 规范性别
	SexTerms map[string]string `yaml:"sex_terms" json:"sex_terms"`
}

// Vocabulary 不可变词汇表。
// 通过 BuildVocabulary 构建一次，之后只读；禁止在运行期修改内部表。
type Vocabulary struct {
	metricTerms  map[string]Metric
	breedAliases map[string]string
	sexTerms     map[string]Sex

	// 按长度降序排列的指标短语，保证 "feed conversion ratio"
	// 先于 "feed" 被匹配
	metricPhrases []string
}

// defaultMetricTerms 默认指标词表（英文 + 西班牙文）
func defaultMetricTerms() map[string]Metric {
	return map[string]Metric{
		"body weight":              MetricBodyWeight,
		"bodyweight":               MetricBodyWeight,
		"live weight":              MetricBodyWeight,
		"bw":                       MetricBodyWeight,
		"weight":                   MetricBodyWeight,
		"peso":                     MetricBodyWeight,
		"peso corporal":            MetricBodyWeight,
		"peso vivo":                MetricBodyWeight,
		"daily gain":               MetricDailyGain,
		"average daily gain":       MetricDailyGain,
		"adg":                      MetricDailyGain,
		"ganancia diaria":          MetricDailyGain,
		"feed intake":              MetricFeedIntake,
		"daily feed intake":        MetricFeedIntake,
		"consumo de alimento":      MetricFeedIntake,
		"consumo diario":           MetricFeedIntake,
		"cumulative feed intake":   MetricCumFeedIntake,
		"cumulative feed":          MetricCumFeedIntake,
		"consumo acumulado":        MetricCumFeedIntake,
		"feed conversion ratio":    MetricFCR,
		"feed conversion":          MetricFCR,
		"fcr":                      MetricFCR,
		"conversion alimenticia":   MetricFCR,
		"conversión alimenticia":   MetricFCR,
		"water intake":             MetricWaterIntake,
		"water consumption":        MetricWaterIntake,
		"consumo de agua":          MetricWaterIntake,
		"mortality":                MetricMortality,
		"mortality rate":           MetricMortality,
		"mortalidad":               MetricMortality,
		"livability":               MetricLivability,
		"viability":                MetricLivability,
		"viabilidad":               MetricLivability,
	}
}

// defaultBreedAliases 默认品种别名表
func defaultBreedAliases() map[string]string {
	return map[string]string{
		"ross":        "Ross 308",
		"ross 308":    "Ross 308",
		"ross308":     "Ross 308",
		"ross 708":    "Ross 708",
		"cobb":        "Cobb 500",
		"cobb 500":    "Cobb 500",
		"cobb500":     "Cobb 500",
		"cobb 700":    "Cobb 700",
		"hubbard":     "Hubbard Flex",
		"arbor acres": "Arbor Acres Plus",
		"isa brown":   "ISA Brown",
		"lohmann":     "Lohmann Brown",
		"hy-line":     "Hy-Line Brown",
		"hyline":      "Hy-Line Brown",
	}
}

// defaultSexTerms 默认性别词表
func defaultSexTerms() map[string]Sex {
	return map[string]Sex{
		"male":       SexMale,
		"males":      SexMale,
		"macho":      SexMale,
		"machos":     SexMale,
		"cockerel":   SexMale,
		"female":     SexFemale,
		"females":    SexFemale,
		"hembra":     SexFemale,
		"hembras":    SexFemale,
		"pullet":     SexFemale,
		"as hatched": SexAsHatched,
		"as-hatched": SexAsHatched,
		"mixed":      SexAsHatched,
		"mixto":      SexAsHatched,
		"straight run": SexAsHatched,
	}
}

// BuildVocabulary 从配置构建词汇表。
// 默认表在前，配置项覆盖同名条目；返回值之后不再修改。
func BuildVocabulary(cfg VocabularyConfig) Vocabulary {
	metrics := defaultMetricTerms()
	for term, metric := range cfg.MetricTerms {
		metrics[strings.ToLower(strings.TrimSpace(term))] = Metric(metric)
	}

	breeds := defaultBreedAliases()
	for alias, canonical := range cfg.BreedAliases {
		breeds[strings.ToLower(strings.TrimSpace(alias))] = canonical
	}

	sexes := defaultSexTerms()
	for term, sex := range cfg.SexTerms {
		sexes[strings.ToLower(strings.TrimSpace(term))] = Sex(sex)
	}

	phrases := make([]string, 0, len(metrics))
	for term := range metrics {
		phrases = append(phrases, term)
	}
	// 长短语优先匹配
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	return Vocabulary{
		metricTerms:   metrics,
		breedAliases:  breeds,
		sexTerms:      sexes,
		metricPhrases: phrases,
	}
}

// Normalizer 领域词汇与单位归一化器
type Normalizer struct {
	vocab Vocabulary
}

// NewNormalizer 创建归一化器
func NewNormalizer(vocab Vocabulary) *Normalizer {
	return &Normalizer{vocab: vocab}
}

var nonWordBoundary = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// foldQuery 折叠查询文本：小写 + 压缩空白
func foldQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Metric 在查询文本中查找规范指标。
// 长短语优先，首个命中即返回；未命中返回 MetricUnknown。
func (n *Normalizer) Metric(query string) Metric {
	folded := foldQuery(query)
	if folded == "" {
		return MetricUnknown
	}
	padded := " " + nonWordBoundary.ReplaceAllString(folded, " ") + " "
	for _, phrase := range n.vocab.metricPhrases {
		needle := " " + nonWordBoundary.ReplaceAllString(phrase, " ") + " "
		if strings.Contains(padded, needle) {
			return n.vocab.metricTerms[phrase]
		}
	}
	return MetricUnknown
}

// Breed 在查询文本中查找规范品种名。
// 返回规范名与是否命中。别名按长度降序匹配，避免 "ross" 抢先于 "ross 708"。
func (n *Normalizer) Breed(query string) (string, bool) {
	folded := foldQuery(query)
	if folded == "" {
		return "", false
	}
	padded := " " + folded + " "

	aliases := make([]string, 0, len(n.vocab.breedAliases))
	for alias := range n.vocab.breedAliases {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})

	for _, alias := range aliases {
		if strings.Contains(padded, " "+alias+" ") {
			return n.vocab.breedAliases[alias], true
		}
	}
	return "", false
}

// Sex 在查询文本中查找规范性别。
func (n *Normalizer) Sex(query string) Sex {
	folded := foldQuery(query)
	if folded == "" {
		return SexUnknown
	}
	padded := " " + nonWordBoundary.ReplaceAllString(folded, " ") + " "

	terms := make([]string, 0, len(n.vocab.sexTerms))
	for term := range n.vocab.sexTerms {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	for _, term := range terms {
		if strings.Contains(padded, " "+term+" ") {
			return n.vocab.sexTerms[term]
		}
	}
	return SexUnknown
}

// Breeds 返回查询中提到的全部规范品种名（去重，按出现位置排序）。
// 比较类查询（"ross vs cobb"）依赖多品种检测。
func (n *Normalizer) Breeds(query string) []string {
	folded := foldQuery(query)
	if folded == "" {
		return nil
	}
	padded := " " + folded + " "

	aliases := make([]string, 0, len(n.vocab.breedAliases))
	for alias := range n.vocab.breedAliases {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})

	type mention struct {
		pos   int
		breed string
	}
	mentions := make([]mention, 0, 2)
	seen := make(map[string]bool)
	consumed := padded

	for _, alias := range aliases {
		idx := strings.Index(consumed, " "+alias+" ")
		if idx < 0 {
			continue
		}
		canonical := n.vocab.breedAliases[alias]
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		mentions = append(mentions, mention{pos: idx, breed: canonical})
		// 命中的别名不再参与更短别名的匹配
		consumed = strings.Replace(consumed, " "+alias+" ", " ", 1)
	}

	sort.Slice(mentions, func(i, j int) bool { return mentions[i].pos < mentions[j].pos })

	breeds := make([]string, len(mentions))
	for i, m := range mentions {
		breeds[i] = m.breed
	}
	return breeds
}

// CanonicalBreed 将单个品种字符串归一化为规范名。
// 未知品种原样返回（首字母规则不做猜测）。
func (n *Normalizer) CanonicalBreed(breed string) string {
	key := foldQuery(breed)
	if canonical, ok := n.vocab.breedAliases[key]; ok {
		return canonical
	}
	return strings.TrimSpace(breed)
}
