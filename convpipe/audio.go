package convpipe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// audioToText transcribes an audio file with whisper.cpp. Failures are
// reported as a descriptive error string in the text channel — same
// philosophy as the spreadsheet stage, a populated text field is always a
// plain string.
func (p *Pipeline) audioToText(ctx context.Context, audioPath, language string) string {
	modelPath, err := p.whisperModel(ctx)
	if err != nil {
		p.logger.Warn("whisper model unavailable", "error", err)
		return fmt.Sprintf("Error: Whisper model not loaded: %v", err)
	}

	tmpDir, err := os.MkdirTemp("", "filepipe-audio-*")
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// whisper.cpp wants 16 kHz mono PCM.
	wavPath := filepath.Join(tmpDir, "audio-16k-mono.wav")
	out, err := p.run.Run(ctx, p.cfg.FFmpegPath,
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		wavPath,
	)
	if err != nil {
		p.logger.Warn("audio preprocess failed", "audio", audioPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return fmt.Sprintf("Error: audio preprocessing failed: %v", err)
	}

	textBase := filepath.Join(tmpDir, "transcript")
	args := []string{
		"-m", modelPath,
		"-f", wavPath,
		"-of", textBase,
		"-otxt",
		"-bs", "5",
	}
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "auto"
	}
	args = append(args, "-l", lang)

	out, err = p.run.Run(ctx, p.cfg.WhisperPath, args...)
	if err != nil {
		p.logger.Warn("transcription failed", "audio", audioPath, "error", err, "stderr", strings.TrimSpace(out.Stderr))
		return fmt.Sprintf("Error: transcription failed: %v", err)
	}

	// Segment texts arrive already concatenated in chronological order in
	// the txt export; whisper includes natural spacing between segments.
	content, err := os.ReadFile(textBase + ".txt")
	if err != nil {
		p.logger.Warn("transcript file missing", "audio", audioPath, "error", err)
		return fmt.Sprintf("Error: transcript not produced: %v", err)
	}
	return strings.TrimSpace(string(content))
}

// whisperModel resolves the transcription model path, once per process.
// Concurrent first use is guarded: a single resolution wins and all callers
// observe the same path. A failed resolution is not cached, so the next
// request retries.
func (p *Pipeline) whisperModel(ctx context.Context) (string, error) {
	p.modelMu.Lock()
	defer p.modelMu.Unlock()

	if p.modelPath != "" {
		return p.modelPath, nil
	}

	path, err := p.resolveModel(ctx)
	if err != nil {
		return "", err
	}
	p.modelPath = path
	return path, nil
}

// resolveModel prefers a locally cached ggml model file and falls back to
// fetching the reference model of the configured size class.
func (p *Pipeline) resolveModel(ctx context.Context) (string, error) {
	fileName := "ggml-" + p.cfg.ModelName + ".bin"
	local := filepath.Join(p.cfg.ModelDir, fileName)
	if _, err := os.Stat(local); err == nil {
		p.logger.Info("using local whisper model", "path", local)
		return local, nil
	}

	url := p.cfg.ModelBaseURL + "/" + fileName
	p.logger.Info("local whisper model missing, fetching reference model", "url", url)

	if err := os.MkdirAll(p.cfg.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch model: HTTP %d from %s", resp.StatusCode, url)
	}

	// Download to a temp name first so a partial fetch never looks like a
	// cached model.
	tmp := local + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("download model: %w", err)
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return "", err
	}

	p.logger.Info("whisper model downloaded", "path", local)
	return local, nil
}
