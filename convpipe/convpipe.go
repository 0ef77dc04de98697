// Package convpipe converts uploaded files into AI-consumable content:
// extracted text, rendered page images, transcripts, or pass-through media
// references, depending on the detected category.
//
// Supported categories:
//   - office — .doc/.docx/.ppt/.pptx → PDF (LibreOffice) → page images
//   - pdf    — page images (pdftoppm), original referenced as the PDF output
//   - sheet  — .xls/.xlsx → sanitized HTML (or Markdown) via LibreOffice
//   - video  — frame images at a sampling interval (ffmpeg)
//   - audio  — transcript (whisper.cpp)
//   - text   — passthrough with encoding fallback
//
// Every stage wraps an external tool and is individually fault-isolated: a
// tool failure degrades to an empty or placeholder field, never to an error
// from Process. All artifacts land in the castore working directory derived
// from the upload's content fingerprint, with deterministic names so that
// reprocessing identical content overwrites in place.
//
// Usage:
//
//	pipe := convpipe.New(store, convpipe.Config{})
//	res, err := pipe.Process(ctx, file, convpipe.DefaultOptions())
package convpipe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/filepipe/castore"
)

// Pipeline is the conversion engine.
type Pipeline struct {
	cfg    Config
	store  *castore.Store
	logger *slog.Logger
	run    runner

	mdConverter *converter.Converter

	// Whisper model handle: resolved once, shared read-only by all
	// in-flight transcriptions. A failed resolution is retried on the
	// next request instead of being cached.
	modelMu   sync.Mutex
	modelPath string
}

// New creates a Pipeline writing artifacts through the given store.
func New(store *castore.Store, cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: cfg.Logger,
		run:    execRunner{},
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// textExtensions is the plain-text allow-list. A file matches the text
// category by extension or by a text/ media-type prefix.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".html": true, ".css": true, ".js": true,
	".py": true, ".json": true, ".xml": true, ".yml": true, ".yaml": true,
	".log": true, ".csv": true,
}

// Detect classifies a file into exactly one category. Extension wins for
// office/pdf/sheet; the declared media-type prefix is authoritative for
// video and audio; anything matching nothing is CategoryUnknown.
func (p *Pipeline) Detect(filename, mediaType string) Category {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".doc", ".docx", ".ppt", ".pptx":
		return CategoryOffice
	case ".pdf":
		return CategoryPDF
	case ".xls", ".xlsx":
		return CategorySheet
	}

	switch {
	case strings.HasPrefix(mediaType, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return CategoryAudio
	}

	if textExtensions[ext] || strings.HasPrefix(mediaType, "text/") {
		return CategoryText
	}
	return CategoryUnknown
}

// Categories returns all dispatchable categories.
func Categories() []Category {
	return []Category{
		CategoryOffice, CategoryPDF, CategorySheet,
		CategoryVideo, CategoryAudio, CategoryText,
	}
}

// Process classifies the upload, runs the matching stage(s) into the
// fingerprint-derived working directory, and assembles the unified result.
//
// Stage failures surface as empty fields or error strings inside the result,
// never as a returned error. The only hard failures are a missing store or an
// uncreatable working directory.
func (p *Pipeline) Process(ctx context.Context, file *castore.UploadedFile, opts Options) (*Result, error) {
	res := &Result{Images: []string{}}

	category := p.Detect(file.Name, file.MediaType)
	if category == CategoryUnknown {
		p.logger.Debug("unknown category, empty result", "name", file.Name, "media_type", file.MediaType)
		return res, nil
	}

	dir, err := p.store.ConvertDir(file.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("convpipe: working dir for %s: %w", file.Fingerprint, err)
	}

	p.logger.Debug("processing upload", "name", file.Name, "category", category, "dir", dir)

	switch category {
	case CategoryOffice:
		if pdfPath := p.officeToPDF(ctx, file.Path, dir); pdfPath != "" {
			res.PDF = "/" + filepath.ToSlash(pdfPath)
			res.Images = p.pdfToImages(ctx, pdfPath, dir, opts.ImageWidth, opts.ImageHeight)
		}

	case CategoryPDF:
		// The original upload is the PDF output; no copy is made.
		res.PDF = file.URL
		res.Images = p.pdfToImages(ctx, file.Path, dir, opts.ImageWidth, opts.ImageHeight)

	case CategorySheet:
		res.Text = p.sheetToText(ctx, file.Path, dir)

	case CategoryVideo:
		res.Video = file.URL
		if opts.ExtractFrames {
			res.Images = p.videoToFrames(ctx, file.Path, dir, opts.FrameInterval, opts.ImageWidth, opts.ImageHeight)
		}

	case CategoryAudio:
		res.Audio = file.URL
		if opts.Transcribe {
			res.Text = p.audioToText(ctx, file.Path, opts.Language)
		}

	case CategoryText:
		res.Text = readTextContent(file.Path)
	}

	return res, nil
}
