// Package vecengine is the embedding and vector-store client consumed by
// the filepipe service: multimodal embeddings from an Ark-compatible
// endpoint, and collection/point operations against a qdrant instance.
//
// It decouples vector plumbing from the conversion pipeline — the pipeline
// produces content, vecengine turns content items into vectors and manages
// their storage, without the pipeline knowing either backend.
//
// Usage:
//
//	eng := vecengine.New(vecengine.Config{APIKey: key})
//	vecs, err := eng.EmbedItems(ctx, items, "")
//	ids, err := eng.Upsert(ctx, "docs", vecs, payloads)
package vecengine

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/filepipe/idgen"
)

// ErrNoAPIKey is returned when embedding is attempted without a configured
// API key. This is a configuration failure and propagates to the caller,
// unlike conversion-stage failures.
var ErrNoAPIKey = errors.New("vecengine: embedding API key not configured")

// Config configures the engine.
type Config struct {
	// Endpoint is the multimodal embeddings URL.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey authenticates against the embedding endpoint. Required for
	// EmbedItems.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name.
	Model string `json:"model" yaml:"model"`

	// QdrantURL is the vector database base URL (default: http://localhost:6333).
	QdrantURL string `json:"qdrant_url" yaml:"qdrant_url"`

	// QdrantAPIKey is sent as the api-key header when set.
	QdrantAPIKey string `json:"qdrant_api_key" yaml:"qdrant_api_key"`

	// Timeout per HTTP request. Default: 60s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://ark.cn-beijing.volces.com/api/v3/embeddings/multimodal"
	}
	if c.Model == "" {
		c.Model = "doubao-embedding-vision-251215"
	}
	if c.QdrantURL == "" {
		c.QdrantURL = "http://localhost:6333"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine talks to the embedding endpoint and the vector database.
type Engine struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	newID  idgen.Generator
}

// New creates an Engine from config.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
		newID:  idgen.Default,
	}
}

func (e *Engine) qdrantBase() string {
	return strings.TrimRight(e.cfg.QdrantURL, "/")
}
