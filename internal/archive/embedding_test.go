package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIEmbedderEmbed(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq embedRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer ts.Close()

	e := NewAPIEmbedder(EmbedderConfig{
		Endpoint:  ts.URL,
		Model:     "text-embedding-3-small",
		APIKey:    "sk-test",
		Dimension: 3,
	})

	vec, err := e.Embed(context.Background(), "the grain dole")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if gotPath != "/embeddings" {
		t.Errorf("expected /embeddings path, got %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != "text-embedding-3-small" || len(gotReq.Input) != 1 || gotReq.Input[0] != "the grain dole" {
		t.Errorf("unexpected request body: %+v", gotReq)
	}
	if e.Dimension() != 3 {
		t.Errorf("expected dimension 3, got %d", e.Dimension())
	}
}

func TestAPIEmbedderErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	e := NewAPIEmbedder(EmbedderConfig{Endpoint: ts.URL, Model: "m", Dimension: 3})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for non-200 response")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer empty.Close()

	e = NewAPIEmbedder(EmbedderConfig{Endpoint: empty.URL, Model: "m", Dimension: 3})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for empty embedding data")
	}
}
