package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flockwise/agrirag/retrieval"
)

func TestQdrantSearchVector(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/collections/docs/points/search" {
			t.Errorf("path = %s", req.URL.Path)
		}
		json.NewDecoder(req.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": []map[string]any{
				{
					"id":    "10f3b5a2-0000-0000-0000-000000000001",
					"score": 0.92,
					"payload": map[string]any{
						"doc_id":  "w35",
						"content": "target weight table",
						"breed":   "ross 308",
					},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{BaseURL: srv.URL, Collection: "docs"}, nil)
	got, err := s.SearchVector(context.Background(), []float64{0.1, 0.2}, 5,
		retrieval.Filter{Breed: "ross 308"})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}

	if len(got) != 1 || got[0].ID != "w35" || got[0].Score != 0.92 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].MetaString("breed") != "ross 308" {
		t.Errorf("metadata not recovered from payload: %+v", got[0].Metadata)
	}

	// filter must be forwarded as qdrant must-match conditions
	f, ok := gotBody["filter"].(map[string]any)
	if !ok {
		t.Fatal("request body missing filter")
	}
	must, _ := f["must"].([]any)
	if len(must) != 1 {
		t.Errorf("must conditions = %v, want single breed match", must)
	}
}

func TestQdrantSearchVectorNoFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		json.NewDecoder(req.Body).Decode(&body)
		if _, ok := body["filter"]; ok {
			t.Error("empty filter must not be serialized")
		}
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{BaseURL: srv.URL, Collection: "docs"}, nil)
	if _, err := s.SearchVector(context.Background(), []float64{0.1}, 5, retrieval.Filter{}); err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
}

func TestQdrantAddDocuments(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path + "?" + req.URL.RawQuery
		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Vector  []float64      `json:"vector"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		json.NewDecoder(req.Body).Decode(&body)
		if len(body.Points) != 1 {
			t.Fatalf("points = %d, want 1", len(body.Points))
		}
		p := body.Points[0]
		if p.ID == "w35" {
			t.Error("point id must be a derived uuid, not the raw doc id")
		}
		if p.Payload["doc_id"] != "w35" || p.Payload["breed"] != "ross 308" {
			t.Errorf("payload = %v", p.Payload)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{BaseURL: srv.URL, Collection: "docs"}, nil)
	err := s.AddDocuments(context.Background(), []Document{{
		ID:        "w35",
		Content:   "target weight table",
		Metadata:  map[string]any{"breed": "ross 308"},
		Embedding: []float64{0.1, 0.2},
	}})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if gotPath != "/collections/docs/points?wait=true" {
		t.Errorf("path = %s", gotPath)
	}
}

func TestQdrantEnsureCollectionRetriesAfterFailure(t *testing.T) {
	var createCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPut && req.URL.Path == "/collections/docs" {
			createCalls++
			// 首次建表失败（如 Qdrant 尚未就绪），之后恢复
			if createCalls == 1 {
				http.Error(w, `{"status":{"error":"service starting"}}`, http.StatusServiceUnavailable)
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{
		BaseURL:              srv.URL,
		Collection:           "docs",
		AutoCreateCollection: true,
	}, nil)
	docs := []Document{{ID: "a", Content: "x", Embedding: []float64{0.1, 0.2}}}

	if err := s.AddDocuments(context.Background(), docs); err == nil {
		t.Fatal("expected error while collection creation is failing")
	}

	// 瞬时失败不得被固化：下一次写入须重试建表并成功
	if err := s.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if createCalls != 2 {
		t.Errorf("expected 2 creation attempts, got %d", createCalls)
	}

	// 成功后不再重复建表
	if err := s.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("AddDocuments after ensure: %v", err)
	}
	if createCalls != 2 {
		t.Errorf("creation must be latched after success, got %d attempts", createCalls)
	}
}

func TestQdrantAddDocumentsValidation(t *testing.T) {
	s := NewQdrantStore(QdrantConfig{Collection: "docs"}, nil)

	if err := s.AddDocuments(context.Background(), []Document{{ID: "a"}}); err == nil {
		t.Error("expected error for document without embedding")
	}
	if err := s.AddDocuments(context.Background(), []Document{
		{ID: "a", Embedding: []float64{1, 2}},
		{ID: "b", Embedding: []float64{1}},
	}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestQdrantSearchVectorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"status":{"error":"collection not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewQdrantStore(QdrantConfig{BaseURL: srv.URL, Collection: "missing"}, nil)
	if _, err := s.SearchVector(context.Background(), []float64{0.1}, 5, retrieval.Filter{}); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestQdrantPointIDStable(t *testing.T) {
	a := qdrantPointID("doc-1")
	b := qdrantPointID("doc-1")
	c := qdrantPointID("doc-2")
	if a != b {
		t.Error("point id must be deterministic")
	}
	if a == c {
		t.Error("distinct docs must map to distinct point ids")
	}
}
