package vecengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedItemsRequiresAPIKey(t *testing.T) {
	e := New(Config{})
	_, err := e.EmbedItems(context.Background(), []Item{{Text: "hello"}}, "")
	if err != ErrNoAPIKey {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestEmbedItems(t *testing.T) {
	var got embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"embedding": []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, APIKey: "test-key"})
	vecs, err := e.EmbedItems(context.Background(), []Item{
		{Text: "a caption", Image: "https://example.com/p.jpg"},
	}, "represent the document for retrieval")
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 {
		t.Fatalf("vectors = %v", vecs)
	}
	if got.Model == "" {
		t.Error("request model not set")
	}
	if len(got.Input) != 2 {
		t.Fatalf("input parts = %d, want 2", len(got.Input))
	}
	if got.Input[0].Type != "text" || got.Input[1].Type != "image_url" {
		t.Errorf("input types = %q, %q", got.Input[0].Type, got.Input[1].Type)
	}
	if got.Input[1].ImageURL == nil || got.Input[1].ImageURL.URL != "https://example.com/p.jpg" {
		t.Errorf("image url = %+v", got.Input[1].ImageURL)
	}
	if got.Instruction != "represent the document for retrieval" {
		t.Errorf("instruction = %q", got.Instruction)
	}
}

func TestEmbedItemsOmitsEmptyInstruction(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"embedding": []float32{0.5}},
		})
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, APIKey: "test-key"})
	if _, err := e.EmbedItems(context.Background(), []Item{{Text: "x"}}, ""); err != nil {
		t.Fatal(err)
	}
	if _, present := raw["instruction"]; present {
		t.Error("empty instruction must be omitted from the request body")
	}
}

func TestEmbedItemsEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad key"},
		})
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, APIKey: "wrong"})
	_, err := e.EmbedItems(context.Background(), []Item{{Text: "x"}}, "")
	if err == nil {
		t.Fatal("expected error")
	}
}

// qdrantFake records calls and serves collection state.
type qdrantFake struct {
	t          *testing.T
	collection string
	created    bool
	upserted   int
	deleted    bool
}

func (q *qdrantFake) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if !q.created {
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result":{}}`))
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		q.created = true
		q.collection = r.PathValue("name")
		w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			q.t.Errorf("decode points: %v", err)
		}
		q.upserted += len(body.Points)
		for _, p := range body.Points {
			if p.ID == "" {
				q.t.Error("point without id")
			}
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"id":"p1","score":0.9,"payload":{"text":"hi"}}]}`))
	})
	mux.HandleFunc("DELETE /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		q.deleted = true
		w.Write([]byte(`{"result":true}`))
	})
	return mux
}

func TestUpsertCreatesCollection(t *testing.T) {
	fake := &qdrantFake{t: t}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	e := New(Config{QdrantURL: srv.URL})
	ids, err := e.Upsert(context.Background(), "docs", [][]float32{{1, 0}, {0, 1}}, []map[string]any{
		{"text": "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !fake.created || fake.collection != "docs" {
		t.Errorf("collection not created: %+v", fake)
	}
	if fake.upserted != 2 {
		t.Errorf("upserted = %d, want 2", fake.upserted)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("ids = %v", ids)
	}
}

func TestUpsertEmpty(t *testing.T) {
	e := New(Config{QdrantURL: "http://127.0.0.1:1"})
	ids, err := e.Upsert(context.Background(), "docs", nil, nil)
	if err != nil || ids != nil {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
}

func TestSearch(t *testing.T) {
	fake := &qdrantFake{t: t, created: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	e := New(Config{QdrantURL: srv.URL})
	hits, err := e.Search(context.Background(), "docs", []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "p1" || hits[0].Score != 0.9 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Payload["text"] != "hi" {
		t.Errorf("payload = %v", hits[0].Payload)
	}
}

func TestDeleteCollection(t *testing.T) {
	fake := &qdrantFake{t: t, created: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	e := New(Config{QdrantURL: srv.URL})
	if err := e.DeleteCollection(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	if !fake.deleted {
		t.Error("delete not forwarded")
	}
}
