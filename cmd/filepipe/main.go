// Command filepipe is the file ingestion and conversion service: uploads go
// through a per-category conversion pipeline (office, pdf, sheet, video,
// audio, text) and the artifacts are served back as static files. Optional
// vector endpoints embed content and store it in qdrant.
//
// Usage:
//
//	filepipe                      # run with defaults on :8086
//	filepipe -config filepipe.yaml
//	MCP_TRANSPORT=stdio filepipe  # serve the MCP tools over stdio instead
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/filepipe/castore"
	"github.com/hazyhaar/filepipe/convpipe"
	"github.com/hazyhaar/filepipe/dbopen"
	"github.com/hazyhaar/filepipe/ledger"
	"github.com/hazyhaar/filepipe/vecengine"
)

// maxUploadBytes bounds the multipart form memory + spill size.
const maxUploadBytes = 1 << 30

func main() {
	configPath := flag.String("config", "", "path to filepipe.yaml config file")
	flag.Parse()

	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Stderr so stdio MCP mode keeps stdout clean for the protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("filepipe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg := &Config{}
	if configPath != "" {
		loaded, err := loadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.applyEnv()
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	store := castore.New(cfg.DataDir)

	cfg.Convert.Logger = logger
	pipe := convpipe.New(store, cfg.Convert)

	cfg.Vector.Logger = logger
	eng := vecengine.New(cfg.Vector)

	db, err := dbopen.Open(cfg.LedgerDB, dbopen.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()

	led := ledger.New(db, logger)
	if err := led.Init(); err != nil {
		return err
	}
	defer led.Close()

	// Stdio MCP mode: expose the pipeline as tools and block until the
	// transport closes. No HTTP server in this mode.
	if env("MCP_TRANSPORT", "") == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "filepipe",
			Version: "1.0.0",
		}, nil)
		pipe.RegisterMCP(srv)
		logger.Info("filepipe: MCP stdio serving")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/process", handleProcess(store, pipe, led, cfg.Token, logger))

	r.Post("/api/vector/store", handleVectorStore(eng, logger))
	r.Post("/api/vector/search", handleVectorSearch(eng))
	r.Delete("/api/vector/collection/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if err := eng.DeleteCollection(req.Context(), name); err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		writeEnvelope(w, 200, "success", map[string]string{"collection": name})
	})

	r.Get("/api/conversions", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if v := req.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := led.Recent(req.Context(), limit)
		if err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		writeEnvelope(w, 200, "success", entries)
	})

	// Uploaded files and conversion artifacts are addressable at the same
	// paths the process response reports.
	r.Handle("/"+cfg.DataDir+"/*", http.StripPrefix("/"+cfg.DataDir+"/",
		http.FileServer(http.Dir(store.Root()))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("filepipe: server starting", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("filepipe: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("filepipe: shutdown", "error", err)
	}
	logger.Info("filepipe: server stopped")
	return nil
}

// handleProcess is the upload endpoint: multipart form in, envelope with the
// stored file record and the conversion result out. Stage failures surface
// inside the result, never as an HTTP error.
func handleProcess(store *castore.Store, pipe *convpipe.Pipeline, led *ledger.Store, token string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			writeEnvelope(w, 400, "invalid multipart form: "+err.Error(), nil)
			return
		}
		if !tokenOK(token, req.FormValue("token")) {
			writeEnvelope(w, 401, "invalid token", nil)
			return
		}
		f, hdr, err := req.FormFile("file")
		if err != nil {
			writeEnvelope(w, 400, "missing file field", nil)
			return
		}
		defer f.Close()

		file, err := store.SaveUpload(hdr.Filename, hdr.Header.Get("Content-Type"), f)
		if err != nil {
			writeEnvelope(w, 500, "store upload: "+err.Error(), nil)
			return
		}

		opts := convpipe.DefaultOptions()
		opts.ImageWidth = formInt(req, "imgW", opts.ImageWidth)
		opts.ImageHeight = formInt(req, "imgH", opts.ImageHeight)
		// "enbaleV2I" is a historical misspelling some clients still send.
		opts.ExtractFrames = formBool(req, "enableV2I", formBool(req, "enbaleV2I", opts.ExtractFrames))
		opts.FrameInterval = formFloat(req, "videoFPS", opts.FrameInterval)
		opts.Transcribe = formBool(req, "enableA2T", opts.Transcribe)
		opts.Language = req.FormValue("audioLanguage")

		category := pipe.Detect(file.Name, file.MediaType)
		start := time.Now()
		result, err := pipe.Process(req.Context(), file, opts)
		if err != nil {
			writeEnvelope(w, 500, "process: "+err.Error(), nil)
			return
		}

		led.RecordAsync(&ledger.Entry{
			Fingerprint: file.Fingerprint,
			Filename:    file.Name,
			Category:    string(category),
			DurationMS:  time.Since(start).Milliseconds(),
			TextChars:   len(result.Text),
			ImageCount:  len(result.Images),
			PDF:         result.PDF,
			Video:       result.Video,
			Audio:       result.Audio,
		})
		logger.Info("filepipe: processed",
			"filename", file.Name,
			"category", category,
			"fingerprint", file.Fingerprint,
			"duration_ms", time.Since(start).Milliseconds())

		writeEnvelope(w, 200, "success", map[string]any{
			"name":        file.Name,
			"url":         file.URL,
			"contentType": file.MediaType,
			"size":        file.Size,
			"md5":         file.Fingerprint,
			"category":    category,
			"text":        result.Text,
			"images":      result.Images,
			"pdf":         result.PDF,
			"video":       result.Video,
			"audio":       result.Audio,
		})
	}
}

type vectorStoreRequest struct {
	Collection  string           `json:"collection"`
	Items       []vecengine.Item `json:"items"`
	Payloads    []map[string]any `json:"payloads"`
	Instruction string           `json:"instruction"`
}

func handleVectorStore(eng *vecengine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in vectorStoreRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeEnvelope(w, 400, "invalid json: "+err.Error(), nil)
			return
		}
		if in.Collection == "" || len(in.Items) == 0 {
			writeEnvelope(w, 400, "collection and items are required", nil)
			return
		}
		vectors, err := eng.EmbedItems(req.Context(), in.Items, in.Instruction)
		if err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		ids, err := eng.Upsert(req.Context(), in.Collection, vectors, in.Payloads)
		if err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		logger.Info("filepipe: vectors stored", "collection", in.Collection, "count", len(ids))
		writeEnvelope(w, 200, "success", map[string]any{"ids": ids})
	}
}

type vectorSearchRequest struct {
	Collection  string `json:"collection"`
	Text        string `json:"text"`
	Image       string `json:"image"`
	Instruction string `json:"instruction"`
	Limit       int    `json:"limit"`
}

func handleVectorSearch(eng *vecengine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in vectorSearchRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeEnvelope(w, 400, "invalid json: "+err.Error(), nil)
			return
		}
		if in.Collection == "" || (in.Text == "" && in.Image == "") {
			writeEnvelope(w, 400, "collection and a text or image query are required", nil)
			return
		}
		vectors, err := eng.EmbedItems(req.Context(), []vecengine.Item{{Text: in.Text, Image: in.Image}}, in.Instruction)
		if err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		hits, err := eng.Search(req.Context(), in.Collection, vectors[0], in.Limit)
		if err != nil {
			writeEnvelope(w, 500, err.Error(), nil)
			return
		}
		writeEnvelope(w, 200, "success", hits)
	}
}

// tokenOK verifies a client token against the configured one. An empty
// configured token disables the check. A configured bcrypt hash ("$2"
// prefix) is compared as a hash, anything else in constant time.
func tokenOK(configured, got string) bool {
	if configured == "" {
		return true
	}
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(got)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(got)) == 1
}

func formInt(req *http.Request, key string, def int) int {
	v := req.FormValue(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func formFloat(req *http.Request, key string, def float64) float64 {
	v := req.FormValue(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func formBool(req *http.Request, key string, def bool) bool {
	v := req.FormValue(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeEnvelope wraps every API response in the {code, message, data} shape
// clients of this service expect. The HTTP status mirrors the code.
func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}
