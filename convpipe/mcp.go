package convpipe

import (
	"context"
	"encoding/json"
	"mime"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/filepipe/castore"
	"github.com/hazyhaar/filepipe/kit"
)

// RegisterMCP registers the conversion pipeline as MCP tools.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerProcessTool(srv)
	p.registerDetectTool(srv)
	p.registerCategoriesTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- process ---

type processReq struct {
	Path        string  `json:"path"`
	MediaType   string  `json:"media_type,omitempty"`
	ImageWidth  int     `json:"image_width,omitempty"`
	ImageHeight int     `json:"image_height,omitempty"`
	Interval    float64 `json:"frame_interval,omitempty"`
	Language    string  `json:"language,omitempty"`
}

func (p *Pipeline) registerProcessTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "filepipe_process",
		Description: "Convert a local file into AI-consumable content: text, page images, frames, or a transcript.",
		InputSchema: inputSchema(map[string]any{
			"path":           map[string]any{"type": "string", "description": "File path to convert"},
			"media_type":     map[string]any{"type": "string", "description": "Declared media type (guessed from the extension if absent)"},
			"image_width":    map[string]any{"type": "integer", "description": "Max image width (0 disables resizing)"},
			"image_height":   map[string]any{"type": "integer", "description": "Max image height (0 disables resizing)"},
			"frame_interval": map[string]any{"type": "number", "description": "Video sampling interval in seconds"},
			"language":       map[string]any{"type": "string", "description": "Transcription language hint"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*processReq)

		fingerprint, err := castore.FingerprintFile(r.Path)
		if err != nil {
			return nil, err
		}
		mediaType := r.MediaType
		if mediaType == "" {
			mediaType = mime.TypeByExtension(filepath.Ext(r.Path))
		}
		file := &castore.UploadedFile{
			Path:        r.Path,
			Name:        filepath.Base(r.Path),
			MediaType:   mediaType,
			Fingerprint: fingerprint,
			URL:         "/" + filepath.ToSlash(r.Path),
		}

		opts := DefaultOptions()
		if r.ImageWidth > 0 || r.ImageHeight > 0 {
			opts.ImageWidth, opts.ImageHeight = r.ImageWidth, r.ImageHeight
		}
		if r.Interval > 0 {
			opts.FrameInterval = r.Interval
		}
		opts.Language = r.Language

		return p.Process(ctx, file, opts)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r processReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- detect ---

type detectReq struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "filepipe_detect",
		Description: "Classify a file into its conversion category from filename and media type.",
		InputSchema: inputSchema(map[string]any{
			"name":       map[string]any{"type": "string", "description": "Filename to classify"},
			"media_type": map[string]any{"type": "string", "description": "Declared media type"},
		}, []string{"name"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		return map[string]any{"category": string(p.Detect(r.Name, r.MediaType))}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- categories ---

func (p *Pipeline) registerCategoriesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "filepipe_categories",
		Description: "List all dispatchable conversion categories.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"categories": Categories()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
