package convpipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pdfToImages rasterizes every PDF page to a sequentially numbered JPEG
// (1.jpg … N.jpg, 1-based, page order) inside outDir and returns the image
// references in strictly increasing page order. Consumers rely on that order
// to reconstruct the page sequence.
//
// If maxWidth and maxHeight are both positive, each page image is downscaled
// to fit the bounding box (aspect preserved, shrink only). A resize failure
// on one page keeps that page at native resolution. A total rasterization
// failure returns an empty, non-nil slice.
func (p *Pipeline) pdfToImages(ctx context.Context, pdfPath, outDir string, maxWidth, maxHeight int) []string {
	urls := []string{}

	pages, err := api.PageCountFile(pdfPath)
	if err != nil {
		p.logger.Warn("pdf page count failed", "pdf", pdfPath, "error", err)
		return urls
	}

	prefix := filepath.Join(outDir, "page")
	out, err := p.run.Run(ctx, p.cfg.PdftoppmPath,
		"-jpeg",
		"-r", strconv.Itoa(p.cfg.RasterDPI),
		pdfPath,
		prefix,
	)
	if err != nil {
		p.logger.Warn("pdf rasterize failed", "pdf", pdfPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return urls
	}

	byPage := rasterizedPages(outDir)

	for n := 1; n <= pages; n++ {
		src, ok := byPage[n]
		if !ok {
			p.logger.Warn("page image missing", "pdf", pdfPath, "page", n)
			continue
		}
		// Canonical per-page name, overwriting any earlier conversion.
		dst := filepath.Join(outDir, fmt.Sprintf("%d.jpg", n))
		os.Remove(dst)
		if err := os.Rename(src, dst); err != nil {
			p.logger.Warn("page image rename failed", "from", src, "error", err)
			dst = src
		}

		if maxWidth > 0 && maxHeight > 0 {
			p.shrinkImage(ctx, dst, maxWidth, maxHeight)
		}

		urls = append(urls, "/"+filepath.ToSlash(dst))
	}
	return urls
}

// rasterizedPages maps page number → produced file for pdftoppm output
// (page-1.jpg, page-01.jpg, … depending on zero padding).
func rasterizedPages(dir string) map[int]string {
	byPage := map[int]string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return byPage
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".jpg"))
		if err != nil {
			continue
		}
		byPage[num] = filepath.Join(dir, name)
	}
	return byPage
}

// shrinkImage bounds an image to maxWidth×maxHeight via ImageMagick.
// The ">" geometry suffix only shrinks images larger than the box, never
// upscales. Failure is logged and the image is kept as rendered.
func (p *Pipeline) shrinkImage(ctx context.Context, path string, maxWidth, maxHeight int) {
	geometry := fmt.Sprintf("%dx%d>", maxWidth, maxHeight)
	if _, err := p.run.Run(ctx, p.cfg.ConvertPath, path, "-resize", geometry, path); err != nil {
		p.logger.Warn("image resize failed, keeping native resolution", "image", path, "error", err)
	}
}
