package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/retrieval"
)

type fakeProvider struct {
	scores []Score
	err    error
	calls  int
}

func (f *fakeProvider) Score(ctx context.Context, query string, documents []string, topN int) ([]Score, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		{ID: "a", Content: "body weight targets", Score: 0.9},
		{ID: "b", Content: "feed conversion ratio", Score: 0.8},
		{ID: "c", Content: "ventilation guidance", Score: 0.7},
	}
}

func TestRerankReorders(t *testing.T) {
	provider := &fakeProvider{scores: []Score{
		{Index: 2, Relevance: 0.99},
		{Index: 0, Relevance: 0.40},
		{Index: 1, Relevance: 0.10},
	}}
	r := NewReranker(provider, DefaultConfig(), zap.NewNop())

	got := r.Rerank(context.Background(), "airflow for broilers", testCandidates(), 2)
	if len(got) != 2 {
		t.Fatalf("returned %d, want topN=2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("order = [%s %s], want [c a]", got[0].ID, got[1].ID)
	}
	if got[0].OriginalScore != 0.7 {
		t.Errorf("fusion score not preserved: %v", got[0].OriginalScore)
	}
	if got[0].Score != 0.99 {
		t.Errorf("relevance score = %v, want 0.99", got[0].Score)
	}
}

func TestRerankDegradesOnError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("503 service unavailable")}
	degraded := 0
	cfg := DefaultConfig()
	cfg.OnDegrade = func() { degraded++ }
	r := NewReranker(provider, cfg, zap.NewNop())

	got := r.Rerank(context.Background(), "query", testCandidates(), 2)
	if len(got) != 2 {
		t.Fatalf("returned %d, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("degraded order = [%s %s], want input order [a b]", got[0].ID, got[1].ID)
	}
	if degraded != 1 {
		t.Errorf("degrade hook fired %d times, want 1", degraded)
	}
}

func TestRerankDegradesOnEmptyResults(t *testing.T) {
	provider := &fakeProvider{scores: []Score{}}
	r := NewReranker(provider, DefaultConfig(), zap.NewNop())

	got := r.Rerank(context.Background(), "query", testCandidates(), 3)
	if len(got) != 3 || got[0].ID != "a" {
		t.Fatalf("expected input order on empty provider response, got %+v", got)
	}
}

func TestRerankNilProvider(t *testing.T) {
	r := NewReranker(nil, DefaultConfig(), zap.NewNop())

	got := r.Rerank(context.Background(), "query", testCandidates(), 1)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("nil provider should pass through, got %+v", got)
	}
}

func TestRerankScoreCache(t *testing.T) {
	provider := &fakeProvider{scores: []Score{
		{Index: 0, Relevance: 0.5},
		{Index: 1, Relevance: 0.6},
		{Index: 2, Relevance: 0.7},
	}}
	r := NewReranker(provider, DefaultConfig(), zap.NewNop())

	r.Rerank(context.Background(), "same query", testCandidates(), 3)
	r.Rerank(context.Background(), "same query", testCandidates(), 3)
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1 (second call served from cache)", provider.calls)
	}

	r.Rerank(context.Background(), "different query", testCandidates(), 3)
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2 (new query must not hit cache)", provider.calls)
	}
}

func TestCohereProvider(t *testing.T) {
	var gotReq cohereRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v2/rerank" {
			t.Errorf("path = %s", req.URL.Path)
		}
		if auth := req.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}
		json.NewDecoder(req.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]any{
			"id": "resp-1",
			"results": []map[string]any{
				{"index": 1, "relevance_score": 0.93},
				{"index": 0, "relevance_score": 0.12},
			},
		})
	}))
	defer srv.Close()

	p := NewCohereProvider(CohereConfig{APIKey: "test-key", BaseURL: srv.URL})
	scores, err := p.Score(context.Background(), "fcr at 21 days", []string{"doc a", "doc b"}, 2)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if gotReq.Model != "rerank-v3.5" {
		t.Errorf("model = %q, want default", gotReq.Model)
	}
	if len(scores) != 2 || scores[0].Index != 1 || scores[0].Relevance != 0.93 {
		t.Errorf("unexpected scores: %+v", scores)
	}
}

func TestCohereProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"message":"invalid api token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewCohereProvider(CohereConfig{APIKey: "bad", BaseURL: srv.URL})
	if _, err := p.Score(context.Background(), "q", []string{"d"}, 1); err == nil {
		t.Fatal("expected error on 401 response")
	}
}
