package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClassifier_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"knowledge"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(ClassifierConfig{APIKey: "test-key", BaseURL: srv.URL})

	out, err := c.Complete(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "knowledge" {
		t.Errorf("expected knowledge, got %q", out)
	}
}

// 补全预算必须容纳完整的 {"strategy","confidence","reasoning"} 应答；
// 预算过小时服务端会把应答截断在对象中间，路由层解析必然失败。
func TestOpenAIClassifier_TokenBudgetFitsRoutingReply(t *testing.T) {
	reply := `{"strategy": "knowledge", "confidence": 0.9, "reasoning": "asks for causes of heat stress, not a table value"}`

	var gotMaxTokens int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotMaxTokens = body.MaxTokens
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": reply}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(ClassifierConfig{BaseURL: srv.URL})

	out, err := c.Complete(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != reply {
		t.Errorf("reply altered: %q", out)
	}

	// ~30 token 的标准应答外留出余量；token 数上界为词数的 2 倍左右
	if gotMaxTokens < 64 {
		t.Errorf("max_tokens %d too small to hold a full routing reply", gotMaxTokens)
	}
}

func TestOpenAIClassifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(ClassifierConfig{BaseURL: srv.URL})

	if _, err := c.Complete(context.Background(), "classify this"); err == nil {
		t.Fatal("expected error on 503 response")
	}
}

func TestOpenAIClassifier_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier(ClassifierConfig{BaseURL: srv.URL})

	if _, err := c.Complete(context.Background(), "classify this"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
