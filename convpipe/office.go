package convpipe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// resultPDFName is the canonical name of the rendered PDF inside a working
// directory. Fixed so that reprocessing identical content overwrites in
// place instead of accumulating files.
const resultPDFName = "result.pdf"

// officeToPDF renders an office document (doc/docx/ppt/pptx) to PDF via
// LibreOffice and renames the output to the canonical result.pdf. Returns
// the canonical path, or "" on any failure — rendering problems degrade to
// an empty PDF reference, they never abort the pipeline.
func (p *Pipeline) officeToPDF(ctx context.Context, inputPath, outDir string) string {
	out, err := p.run.Run(ctx, p.cfg.SofficePath,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	if err != nil {
		p.logger.Warn("office to pdf failed", "input", inputPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return ""
	}

	// LibreOffice names the output after the input basename.
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		p.logger.Warn("office to pdf produced no file", "input", inputPath, "expected", produced)
		return ""
	}

	final := filepath.Join(outDir, resultPDFName)
	os.Remove(final)
	if err := os.Rename(produced, final); err != nil {
		p.logger.Warn("office to pdf rename failed", "from", produced, "to", final, "error", err)
		return ""
	}
	return final
}
