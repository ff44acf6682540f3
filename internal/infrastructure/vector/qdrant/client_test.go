package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fixedEmbedder struct {
	vector []float32
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return f.vector, nil
}

func TestStoreEnsuresCollectionOncePerNamespace(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/user_1_sessions":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/user_1_sessions/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1, 0.2}})

	if _, err := client.Store(context.Background(), "user_1_sessions", "first", map[string]any{"role": "user"}); err != nil {
		t.Fatalf("first Store() error = %v", err)
	}
	if _, err := client.Store(context.Background(), "user_1_sessions", "second", map[string]any{"role": "assistant"}); err != nil {
		t.Fatalf("second Store() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestStoreTreatsExistingCollectionAsEnsured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/user_1_sessions":
			http.Error(w, "already exists", http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/user_1_sessions/points":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1, 0.2}})
	if _, err := client.Store(context.Background(), "user_1_sessions", "hello", nil); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
}

func TestStoreKeepsTextInPayload(t *testing.T) {
	var upsert struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/user_1_sessions/points" {
			if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1, 0.2}})
	id, err := client.Store(context.Background(), "user_1_sessions", "how do I open the call", map[string]any{"role": "user", "session_id": "s1"})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if len(upsert.Points) != 1 {
		t.Fatalf("expected one point, got %d", len(upsert.Points))
	}
	point := upsert.Points[0]
	if point.ID != id {
		t.Fatalf("returned id %q does not match upserted id %q", id, point.ID)
	}
	if point.Payload["text"] != "how do I open the call" {
		t.Fatalf("payload text = %v", point.Payload["text"])
	}
	if point.Payload["role"] != "user" || point.Payload["session_id"] != "s1" {
		t.Fatalf("payload = %#v", point.Payload)
	}
}

func TestQueryMapsHitsAndFilter(t *testing.T) {
	var searchReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/user_1_sessions/points/search" {
			if err := json.NewDecoder(r.Body).Decode(&searchReq); err != nil {
				t.Errorf("decode search: %v", err)
			}
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.91,"payload":{"text":"talked about pricing","role":"user"}},
				{"payload":{"text":"no score here"}}
			]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1, 0.2}})
	hits, err := client.Query(context.Background(), "user_1_sessions", "pricing", 3, map[string]any{"role": "user"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Text != "talked about pricing" {
		t.Fatalf("hits[0].Text = %q", hits[0].Text)
	}
	if hits[0].Distance == nil || *hits[0].Distance != 0.91 {
		t.Fatalf("hits[0].Distance = %v", hits[0].Distance)
	}
	if hits[1].Distance != nil {
		t.Fatalf("missing score must map to nil distance, got %v", *hits[1].Distance)
	}
	if hits[0].Metadata["role"] != "user" {
		t.Fatalf("metadata = %#v", hits[0].Metadata)
	}
	if _, ok := hits[0].Metadata["text"]; ok {
		t.Fatal("text must not be duplicated into metadata")
	}

	filter, ok := searchReq["filter"].(map[string]any)
	if !ok {
		t.Fatalf("filter missing from search request: %#v", searchReq)
	}
	if _, ok := filter["must"]; !ok {
		t.Fatalf("filter has no must clause: %#v", filter)
	}
}

func TestDeleteWhereReportsMatchedCount(t *testing.T) {
	var deleted int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/collections/user_1_sessions/points/count":
			_, _ = w.Write([]byte(`{"result":{"count":4}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/user_1_sessions/points/delete":
			atomic.AddInt32(&deleted, 1)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	count, err := client.DeleteWhere(context.Background(), "user_1_sessions", map[string]any{"session_id": "s1"})
	if err != nil {
		t.Fatalf("DeleteWhere() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	if atomic.LoadInt32(&deleted) != 1 {
		t.Fatal("delete endpoint not called")
	}
}

func TestDeleteWhereSkipsDeleteWhenNothingMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/user_1_sessions/points/count" {
			_, _ = w.Write([]byte(`{"result":{"count":0}}`))
			return
		}
		t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	count, err := client.DeleteWhere(context.Background(), "user_1_sessions", map[string]any{"session_id": "s1"})
	if err != nil {
		t.Fatalf("DeleteWhere() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestStoreIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, &fixedEmbedder{vector: []float32{0.1}})
	_, err := client.Store(context.Background(), "user_1_sessions", "hello", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
