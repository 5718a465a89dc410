package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler func(method string) string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, handler(req.Method))
	})
	return httptest.NewServer(mux)
}

func TestClient_Initialize(t *testing.T) {
	srv := newTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","id":"1","result":{"protocolVersion":"2024-11-05","capabilities":{"tools":{"listChanged":true}},"serverInfo":{"name":"s","version":"1"}}}`
	})
	defer srv.Close()

	c := NewClient(ServerDefinition{Name: "s", BaseURL: srv.URL, Enabled: true, TimeoutMS: 1000}, nil)
	caps, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.Tools == nil || !caps.Tools.ListChanged {
		t.Fatalf("expected tools.listChanged=true, got %+v", caps.Tools)
	}
}

func TestClient_ListTools_SkipsMalformedEntries(t *testing.T) {
	srv := newTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","id":"1","result":{"tools":[{"name":"good","description":"d","inputSchema":{}},{"name":123}]}}`
	})
	defer srv.Close()

	c := NewClient(ServerDefinition{Name: "s", BaseURL: srv.URL, Enabled: true, TimeoutMS: 1000}, nil)
	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "good" {
		t.Fatalf("expected only the well-formed tool, got %+v", tools)
	}
}

func TestClient_CallTool_JoinsTextContent(t *testing.T) {
	srv := newTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","id":"1","result":{"content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}}`
	})
	defer srv.Close()

	c := NewClient(ServerDefinition{Name: "s", BaseURL: srv.URL, Enabled: true, TimeoutMS: 1000}, nil)
	out, isErr, err := c.CallTool(context.Background(), "tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isErr {
		t.Fatal("expected isErr=false")
	}
	if out != "line one\nline two" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestClient_CallTool_ProtocolError(t *testing.T) {
	srv := newTestServer(t, func(method string) string {
		return `{"jsonrpc":"2.0","id":"1","error":{"code":-32601,"message":"method not found"}}`
	})
	defer srv.Close()

	c := NewClient(ServerDefinition{Name: "s", BaseURL: srv.URL, Enabled: true, TimeoutMS: 1000}, nil)
	_, _, err := c.CallTool(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestClient_ApplyAuth_Bearer(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{"tools":[]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(ServerDefinition{
		Name:    "s",
		BaseURL: srv.URL,
		Enabled: true,
		TimeoutMS: 1000,
		Auth:    AuthConfig{Type: AuthBearer, Token: "secret-token"},
	}, nil)
	if _, err := c.ListTools(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestClient_ApplyAuth_UnsupportedType(t *testing.T) {
	c := NewClient(ServerDefinition{
		Name:    "s",
		BaseURL: "http://example.invalid",
		Enabled: true,
		Auth:    AuthConfig{Type: "made-up"},
	}, nil)
	err := c.applyAuth(&http.Request{Header: make(http.Header)})
	if err == nil {
		t.Fatal("expected an error for unsupported auth type")
	}
}

func TestClient_TestConnection_UsesHealthEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(ServerDefinition{Name: "s", BaseURL: srv.URL, Enabled: true, TimeoutMS: 1000}, nil)
	if err := c.TestConnection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
