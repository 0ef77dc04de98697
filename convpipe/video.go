package convpipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// framePattern sorts lexicographically into temporal order, which the
// returned reference list depends on.
const framePattern = "frame_%03d.jpg"

// buildVideoFilter combines the sampling and scaling directives into one
// ffmpeg -vf expression. An interval ≤ 0 omits the fps filter; a zero
// width or height omits scaling. Returns "" when neither applies.
func buildVideoFilter(interval float64, maxWidth, maxHeight int) string {
	var filters []string
	if interval > 0 {
		filters = append(filters, fmt.Sprintf("fps=1/%g", interval))
	}
	if maxWidth > 0 && maxHeight > 0 {
		// Fit inside the box, preserve aspect ratio, never upscale.
		filters = append(filters, fmt.Sprintf(
			"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
			maxWidth, maxHeight))
	}
	return strings.Join(filters, ",")
}

// videoToFrames extracts frames from a video at the given interval into
// outDir and returns their references sorted by filename, which guarantees
// chronological order regardless of ffmpeg's enumeration. Tool failure
// yields an empty, non-nil slice.
func (p *Pipeline) videoToFrames(ctx context.Context, videoPath, outDir string, interval float64, maxWidth, maxHeight int) []string {
	urls := []string{}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
	}
	if vf := buildVideoFilter(interval, maxWidth, maxHeight); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-q:v", "2",
		filepath.Join(outDir, framePattern),
	)

	out, err := p.run.Run(ctx, p.cfg.FFmpegPath, args...)
	if err != nil {
		p.logger.Warn("video frame extraction failed", "video", videoPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return urls
	}

	// Re-list the directory: the filesystem is the source of truth for
	// what ffmpeg actually produced.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		p.logger.Warn("frame dir listing failed", "dir", outDir, "error", err)
		return urls
	}

	var frames []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".jpg") {
			frames = append(frames, name)
		}
	}
	sort.Strings(frames)

	for _, name := range frames {
		urls = append(urls, "/"+filepath.ToSlash(filepath.Join(outDir, name)))
	}
	return urls
}
