package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestEmbedPostsModelAndParsesVector(t *testing.T) {
	var gotReq embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
			}{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	os.Setenv("DOCINDEX_EMBEDDING_BASE_URL", srv.URL)
	defer os.Unsetenv("DOCINDEX_EMBEDDING_BASE_URL")

	client := New("test-model")
	vec, err := client.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if gotReq.Model != "test-model" || gotReq.Input != "hello world" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestEmbedReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	os.Setenv("DOCINDEX_EMBEDDING_BASE_URL", srv.URL)
	defer os.Unsetenv("DOCINDEX_EMBEDDING_BASE_URL")

	client := New("test-model")
	if _, err := client.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error")
	}
}
