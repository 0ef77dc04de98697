package kit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestContext_Transport_Default(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
}

func TestContext_Transport_Set(t *testing.T) {
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_RequestID(t *testing.T) {
	if v := GetRequestID(context.Background()); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	ctx := WithRequestID(context.Background(), "req_abc")
	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
}

type echoReq struct {
	Msg string `json:"msg"`
}

func toolSession(t *testing.T, endpoint Endpoint) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	RegisterMCPTool(srv, &mcp.Tool{
		Name: "echo",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"msg": map[string]any{"type": "string"},
			},
		},
	}, endpoint, func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
		var r echoReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &MCPDecodeResult{Request: &r}, nil
	})

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegisterMCPTool_Roundtrip(t *testing.T) {
	var sawTransport string
	session := toolSession(t, func(ctx context.Context, req any) (any, error) {
		sawTransport = GetTransport(ctx)
		r := req.(*echoReq)
		return map[string]string{"echo": r.Msg}, nil
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "ping"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var resp map[string]string
	if err := json.Unmarshal([]byte(tc.Text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["echo"] != "ping" {
		t.Errorf("echo: got %q", resp["echo"])
	}
	if sawTransport != "mcp" {
		t.Errorf("endpoint transport: got %q, want 'mcp'", sawTransport)
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	session := toolSession(t, func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("stage exploded")
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"msg": "x"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-level error, not protocol error")
	}
}
