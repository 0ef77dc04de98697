package vecengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Hit is one search result: the stored point id, its payload, and the
// similarity score.
type Hit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type qdrantResponse struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

// Upsert stores vectors with their payloads into collection, creating the
// collection on first use. Payloads may be nil or shorter than vectors;
// missing entries are stored without payload. Returns the generated point
// ids, in order.
func (e *Engine) Upsert(ctx context.Context, collection string, vectors [][]float32, payloads []map[string]any) ([]string, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	if err := e.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return nil, err
	}

	points := make([]qdrantPoint, len(vectors))
	ids := make([]string, len(vectors))
	for i, vec := range vectors {
		ids[i] = e.newID()
		points[i] = qdrantPoint{ID: ids[i], Vector: vec}
		if i < len(payloads) {
			points[i].Payload = payloads[i]
		}
	}
	body := map[string]any{"points": points}
	if _, err := e.qdrant(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body); err != nil {
		return nil, fmt.Errorf("upsert into %q: %w", collection, err)
	}
	e.logger.Debug("vecengine: points stored", "collection", collection, "count", len(points))
	return ids, nil
}

// Search returns the top limit hits for vector in collection, highest score
// first.
func (e *Engine) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	result, err := e.qdrant(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}
	var hits []Hit
	if err := json.Unmarshal(result, &hits); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return hits, nil
}

// DeleteCollection removes a collection and all its points. Deleting a
// collection that does not exist is not an error.
func (e *Engine) DeleteCollection(ctx context.Context, collection string) error {
	_, err := e.qdrant(ctx, http.MethodDelete, "/collections/"+collection, nil)
	if err != nil {
		return fmt.Errorf("delete collection %q: %w", collection, err)
	}
	return nil
}

// ensureCollection creates collection with the given vector size and cosine
// distance if it does not already exist.
func (e *Engine) ensureCollection(ctx context.Context, collection string, size int) error {
	if _, err := e.qdrant(ctx, http.MethodGet, "/collections/"+collection, nil); err == nil {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{"size": size, "distance": "Cosine"},
	}
	if _, err := e.qdrant(ctx, http.MethodPut, "/collections/"+collection, body); err != nil {
		return fmt.Errorf("create collection %q: %w", collection, err)
	}
	e.logger.Info("vecengine: collection created", "collection", collection, "size", size)
	return nil
}

// qdrant performs one REST call and returns the raw result field.
func (e *Engine) qdrant(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.qdrantBase()+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cfg.QdrantAPIKey != "" {
		req.Header.Set("api-key", e.cfg.QdrantAPIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	var qr qdrantResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return nil, fmt.Errorf("qdrant %s %s: decode: %w", method, path, err)
	}
	return qr.Result, nil
}
