package store

import (
	"context"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/retrieval"
)

// BM25 参数，常用取值
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// MemoryStore 进程内文档存储，同时提供向量与 BM25 关键词两路检索。
// 面向小语料部署与测试；Add 后统计量即时重算。
type MemoryStore struct {
	mu        sync.RWMutex
	documents []Document
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
	logger    *zap.Logger
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		idf:    make(map[string]float64),
		logger: logger.With(zap.String("component", "memory_store")),
	}
}

// Add 入库文档并重算 BM25 统计量
func (s *MemoryStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = append(s.documents, docs...)
	s.recomputeStats()
}

// Len 返回文档数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// recomputeStats 重算文档长度、平均长度与 IDF，持锁调用
func (s *MemoryStore) recomputeStats() {
	totalLen := 0
	s.docLens = make([]int, len(s.documents))
	termDocCount := make(map[string]int)

	for i, doc := range s.documents {
		terms := tokenize(doc.Content)
		s.docLens[i] = len(terms)
		totalLen += len(terms)

		seen := make(map[string]bool)
		for _, term := range terms {
			if !seen[term] {
				termDocCount[term]++
				seen[term] = true
			}
		}
	}

	s.avgDocLen = 0
	if len(s.documents) > 0 {
		s.avgDocLen = float64(totalLen) / float64(len(s.documents))
	}

	N := float64(len(s.documents))
	s.idf = make(map[string]float64, len(termDocCount))
	for term, df := range termDocCount {
		s.idf[term] = math.Log((N-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
}

// SearchVector 余弦相似度检索
func (s *MemoryStore) SearchVector(ctx context.Context, embedding []float64, topK int, filter retrieval.Filter) ([]retrieval.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]retrieval.Candidate, 0, topK)
	for _, doc := range s.documents {
		if len(doc.Embedding) == 0 || !matchesFilter(doc.Metadata, filter) {
			continue
		}
		if score := cosineSim(embedding, doc.Embedding); score > 0 {
			candidates = append(candidates, toCandidate(doc, score, "memory_vector"))
		}
	}

	retrieval.SortByScore(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// SearchKeyword BM25 检索
func (s *MemoryStore) SearchKeyword(ctx context.Context, query string, topK int, filter retrieval.Filter) ([]retrieval.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return []retrieval.Candidate{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]retrieval.Candidate, 0, topK)
	for i, doc := range s.documents {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}

		termFreq := make(map[string]int)
		for _, term := range tokenize(doc.Content) {
			termFreq[term]++
		}

		score := 0.0
		docLen := float64(s.docLens[i])
		for _, qTerm := range queryTerms {
			tf, ok := termFreq[qTerm]
			if !ok {
				continue
			}
			idf := s.idf[qTerm]
			numerator := float64(tf) * (bm25K1 + 1.0)
			denominator := float64(tf) + bm25K1*(1.0-bm25B+bm25B*(docLen/s.avgDocLen))
			score += idf * (numerator / denominator)
		}

		if score > 0 {
			candidates = append(candidates, toCandidate(doc, score, "memory_keyword"))
		}
	}

	retrieval.SortByScore(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func cosineSim(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// 接口断言
var (
	_ retrieval.VectorStore  = (*MemoryStore)(nil)
	_ retrieval.KeywordStore = (*MemoryStore)(nil)
)
