package vecengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Item is one thing to embed: text, an image, or both. Image is a URL or a
// data: URI with base64 content.
type Item struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type embedContent struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *embedImageURL `json:"image_url,omitempty"`
}

type embedImageURL struct {
	URL string `json:"url"`
}

type embedRequest struct {
	Model       string         `json:"model"`
	Input       []embedContent `json:"input"`
	Instruction string         `json:"instruction,omitempty"`
}

type embedResponse struct {
	Data struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedItems returns one vector per item, in order. An item combining text
// and image yields a single fused vector. The optional instruction steers
// the embedding (empty = omitted from the request). Fails fast on the first
// item that cannot be embedded.
func (e *Engine) EmbedItems(ctx context.Context, items []Item, instruction string) ([][]float32, error) {
	if e.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	vectors := make([][]float32, 0, len(items))
	for i, it := range items {
		vec, err := e.embedOne(ctx, it, instruction)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (e *Engine) embedOne(ctx context.Context, it Item, instruction string) ([]float32, error) {
	var input []embedContent
	if it.Text != "" {
		input = append(input, embedContent{Type: "text", Text: it.Text})
	}
	if it.Image != "" {
		input = append(input, embedContent{Type: "image_url", ImageURL: &embedImageURL{URL: it.Image}})
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("empty item")
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: input, Instruction: instruction})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	var er embedResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return nil, fmt.Errorf("decode embedding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if er.Error != nil {
			msg = er.Error.Message
		}
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, msg)
	}
	if len(er.Data.Embedding) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned empty vector")
	}
	return er.Data.Embedding, nil
}
