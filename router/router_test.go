package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/normalize"
)

func newTestRouter(llm ClassifierLLM) *Router {
	n := normalize.NewNormalizer(normalize.BuildVocabulary(normalize.VocabularyConfig{}))
	cfg := DefaultConfig()
	if llm == nil {
		cfg.EnableLLMFallback = false
	}
	return New(cfg, n, llm, zap.NewNop())
}

func TestRouter_Route_NumericQuery(t *testing.T) {
	r := newTestRouter(nil)

	decision := r.Route(context.Background(), "expected weight of ross 308 at 35 days")

	if decision.Strategy != StrategyNumeric {
		t.Errorf("expected numeric, got %q (evidence %+v)", decision.Strategy, decision.Evidence)
	}
	if decision.Confidence < 0.7 {
		t.Errorf("expected high confidence, got %f", decision.Confidence)
	}
	if len(decision.Evidence.NumericHits) == 0 {
		t.Error("expected numeric keyword evidence")
	}
}

func TestRouter_Route_KnowledgeQuery(t *testing.T) {
	r := newTestRouter(nil)

	decision := r.Route(context.Background(), "why are my birds panting and how to prevent heat stress")

	if decision.Strategy != StrategyKnowledge {
		t.Errorf("expected knowledge, got %q (evidence %+v)", decision.Strategy, decision.Evidence)
	}
}

func TestRouter_Route_Comparative(t *testing.T) {
	r := newTestRouter(nil)

	decision := r.Route(context.Background(), "compare ross 308 vs cobb 500 growth")

	if decision.Strategy != StrategyHybrid {
		t.Errorf("expected hybrid for comparative query, got %q", decision.Strategy)
	}
	if !decision.Evidence.Comparative {
		t.Error("expected comparative evidence flag")
	}
}

func TestRouter_Route_EmptyQuery(t *testing.T) {
	r := newTestRouter(nil)

	decision := r.Route(context.Background(), "")

	if decision.Strategy != StrategyHybrid {
		t.Errorf("expected hybrid for empty query, got %q", decision.Strategy)
	}
	if !decision.Evidence.FallbackUsed {
		t.Error("expected fallback evidence flag")
	}
}

func TestRouter_Route_Deterministic(t *testing.T) {
	r := newTestRouter(nil)
	query := "expected weight of ross 308 at 35 days"

	first := r.Route(context.Background(), query)
	for i := 0; i < 10; i++ {
		next := r.Route(context.Background(), query)
		if next.Strategy != first.Strategy || next.Confidence != first.Confidence {
			t.Fatalf("layer-1 routing not deterministic: run %d got (%q, %f), want (%q, %f)",
				i, next.Strategy, next.Confidence, first.Strategy, first.Confidence)
		}
	}
}

// mockClassifier 固定返回的 LLM 分类器
type mockClassifier struct {
	response string
	err      error
	calls    int
}

func (m *mockClassifier) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestRouter_Route_LLMFallback(t *testing.T) {
	llm := &mockClassifier{
		response: `{"strategy": "knowledge", "confidence": 0.8, "reasoning": "diagnostic question"}`,
	}
	r := newTestRouter(llm)

	// 两侧指示词都不命中，落入第二层
	decision := r.Route(context.Background(), "tell me about my flock")

	if !decision.Evidence.LLMUsed {
		t.Fatalf("expected llm to be used, got %+v", decision.Evidence)
	}
	if decision.Strategy != StrategyKnowledge {
		t.Errorf("expected knowledge from llm, got %q", decision.Strategy)
	}
}

func TestRouter_Route_LLMErrorDefaultsHybrid(t *testing.T) {
	llm := &mockClassifier{err: errors.New("service unavailable")}
	r := newTestRouter(llm)

	decision := r.Route(context.Background(), "tell me about my flock")

	if decision.Strategy != StrategyHybrid {
		t.Errorf("expected hybrid on llm error, got %q", decision.Strategy)
	}
	if !decision.Evidence.FallbackUsed {
		t.Error("expected fallback evidence flag")
	}
}

func TestRouter_Route_LLMInvalidLabelDefaultsHybrid(t *testing.T) {
	llm := &mockClassifier{
		response: `{"strategy": "graph_rag", "confidence": 0.9, "reasoning": "made up"}`,
	}
	r := newTestRouter(llm)

	decision := r.Route(context.Background(), "tell me about my flock")

	if decision.Strategy != StrategyHybrid {
		t.Errorf("expected out-of-set label coerced to hybrid, got %q", decision.Strategy)
	}
}

func TestRouter_Route_TruncatedLLMReplyDefaultsHybrid(t *testing.T) {
	// 服务端按 token 上限截断应答时，JSON 会停在对象中间
	llm := &mockClassifier{
		response: `{"strategy": "knowledge", "confidence": 0.9, "reasoning": "the question asks`,
	}
	r := newTestRouter(llm)

	decision := r.Route(context.Background(), "tell me about my flock")

	if decision.Strategy != StrategyHybrid {
		t.Errorf("expected hybrid on unparseable reply, got %q", decision.Strategy)
	}
	if decision.Evidence.LLMUsed {
		t.Error("truncated reply must not count as an llm decision")
	}
}

func TestRouter_Route_LLMResultCached(t *testing.T) {
	llm := &mockClassifier{
		response: `{"strategy": "hybrid", "confidence": 0.7, "reasoning": "mixed"}`,
	}
	n := normalize.NewNormalizer(normalize.BuildVocabulary(normalize.VocabularyConfig{}))
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	cfg.LLMRateLimit = 0
	r := New(cfg, n, llm, zap.NewNop())

	query := "tell me about my flock"
	r.Route(context.Background(), query)
	r.Route(context.Background(), query)

	if llm.calls != 1 {
		t.Errorf("expected 1 llm call (second served from cache), got %d", llm.calls)
	}
}

func TestDecisionCache_DeletesExpiredOnGet(t *testing.T) {
	c := newDecisionCache(time.Minute)
	c.set("stale query", &Decision{
		Strategy:  StrategyKnowledge,
		Timestamp: time.Now().Add(-time.Hour),
	})

	if _, ok := c.get("stale query"); ok {
		t.Fatal("expired entry must not be served")
	}
	if len(c.entries) != 0 {
		t.Errorf("expired entry must be deleted on lookup, %d left", len(c.entries))
	}
}

func TestDecisionCache_BoundedSize(t *testing.T) {
	c := newDecisionCache(time.Hour)
	for i := 0; i <= maxDecisionEntries; i++ {
		c.set(fmt.Sprintf("query %d", i), &Decision{Timestamp: time.Now()})
	}

	if len(c.entries) > maxDecisionEntries {
		t.Errorf("cache grew past its cap: %d entries", len(c.entries))
	}
}

func TestRouter_RouteBatch(t *testing.T) {
	r := newTestRouter(nil)

	decisions := r.RouteBatch(context.Background(), []string{
		"expected weight at 35 days",
		"why is mortality high",
		"",
	})

	if len(decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(decisions))
	}
	for i, d := range decisions {
		if d == nil {
			t.Errorf("decision %d is nil", i)
		}
	}
}
