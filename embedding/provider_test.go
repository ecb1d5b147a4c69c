package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProviderEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s", req.URL.Path)
		}
		var body embedRequest
		json.NewDecoder(req.Body).Decode(&body)
		if len(body.Input) != 2 {
			t.Errorf("input size = %d, want 2", len(body.Input))
		}

		// deliberately out of order
		json.NewEncoder(w).Encode(map[string]any{
			"model": body.Model,
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0.3, 0.4}},
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Dimensions: 2})
	vectors, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func TestOpenAIProviderEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{1, 2, 3}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL})
	vec, err := p.EmbedQuery(context.Background(), "ross 308 weight at 35 days")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d, want 3", len(vec))
	}
}

func TestOpenAIProviderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL})
	if _, err := p.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error on count mismatch")
	}
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL})
	if _, err := p.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestOpenAIProviderEmptyInput(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	if _, err := p.EmbedBatch(context.Background(), nil); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestDefaultsApplied(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})
	if p.Name() != "openai-embedding" {
		t.Errorf("name = %q", p.Name())
	}
	if p.Dimensions() != 1536 {
		t.Errorf("dimensions = %d, want default 1536", p.Dimensions())
	}
}
