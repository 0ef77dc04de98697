package convpipe

// Category is the unit of dispatch: one per supported conversion route.
type Category string

const (
	CategoryOffice  Category = "office"
	CategoryPDF     Category = "pdf"
	CategorySheet   Category = "sheet"
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
	CategoryText    Category = "text"
	CategoryUnknown Category = "unknown"
)

// Options are the per-request tunables of one conversion. The zero value
// means "no resize, nothing optional enabled"; use DefaultOptions for the
// service defaults.
type Options struct {
	// ImageWidth/ImageHeight bound rendered page and frame images
	// (fit-inside, shrink only). If either is zero, no resize is applied.
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// ExtractFrames enables the video→frames stage for video uploads.
	ExtractFrames bool `json:"extract_frames"`

	// FrameInterval is the video sampling interval in seconds. A value ≤ 0
	// disables interval-based sampling (every frame is extracted).
	FrameInterval float64 `json:"frame_interval"`

	// Transcribe enables the audio→transcript stage for audio uploads.
	Transcribe bool `json:"transcribe"`

	// Language is the transcription language hint. Empty = auto-detect.
	Language string `json:"language"`
}

// DefaultOptions returns the service defaults: 1024×1024 bounding box,
// frame extraction and transcription enabled, 1 s sampling, auto language.
func DefaultOptions() Options {
	return Options{
		ImageWidth:    1024,
		ImageHeight:   1024,
		ExtractFrames: true,
		FrameInterval: 1.0,
		Transcribe:    true,
	}
}

// Result is the unified conversion output. Exactly the stages selected by
// the category populate it; everything else stays empty. Images is never
// nil so the serialized record always carries an array.
type Result struct {
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images"`
	PDF    string   `json:"pdf,omitempty"`
	Video  string   `json:"video,omitempty"`
	Audio  string   `json:"audio,omitempty"`
}
