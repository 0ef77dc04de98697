package convpipe

import "log/slog"

// SheetFormatHTML and SheetFormatMarkdown select the spreadsheet text output.
const (
	SheetFormatHTML     = "html"
	SheetFormatMarkdown = "markdown"
)

// Config configures the conversion pipeline: external tool paths, raster
// settings, and the transcription model location.
type Config struct {
	// External tool binaries. Defaults assume they are on PATH.
	SofficePath  string `json:"soffice_path" yaml:"soffice_path"`
	PdftoppmPath string `json:"pdftoppm_path" yaml:"pdftoppm_path"`
	ConvertPath  string `json:"convert_path" yaml:"convert_path"` // ImageMagick convert
	FFmpegPath   string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	WhisperPath  string `json:"whisper_path" yaml:"whisper_path"`

	// RasterDPI is the pdftoppm render resolution (default: 150).
	RasterDPI int `json:"raster_dpi" yaml:"raster_dpi"`

	// SheetFormat selects the spreadsheet text output: "html" (default,
	// sanitized markup) or "markdown".
	SheetFormat string `json:"sheet_format" yaml:"sheet_format"`

	// ModelDir holds whisper ggml model files (default: "models").
	ModelDir string `json:"model_dir" yaml:"model_dir"`

	// ModelName is the whisper model size class (default: "large-v3").
	ModelName string `json:"model_name" yaml:"model_name"`

	// ModelBaseURL is where a missing model file is fetched from.
	ModelBaseURL string `json:"model_base_url" yaml:"model_base_url"`

	// Logger for stage diagnostics.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.SofficePath == "" {
		c.SofficePath = "soffice"
	}
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.ConvertPath == "" {
		c.ConvertPath = "convert"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.WhisperPath == "" {
		c.WhisperPath = "whisper-cli"
	}
	if c.RasterDPI <= 0 {
		c.RasterDPI = 150
	}
	if c.SheetFormat == "" {
		c.SheetFormat = SheetFormatHTML
	}
	if c.ModelDir == "" {
		c.ModelDir = "models"
	}
	if c.ModelName == "" {
		c.ModelName = "large-v3"
	}
	if c.ModelBaseURL == "" {
		c.ModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
