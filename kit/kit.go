// Package kit holds the small transport plumbing shared by filepipe
// surfaces: the transport-agnostic Endpoint shape and request-scoped
// context values.
package kit

import "context"

// Endpoint is a transport-agnostic handler: decoded request in, response
// out. HTTP handlers and MCP tools both terminate in one of these.
type Endpoint func(ctx context.Context, req any) (any, error)

type contextKey string

const (
	transportKey contextKey = "filepipe_transport" // "http", "mcp"
	requestIDKey contextKey = "filepipe_request_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return "http"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
