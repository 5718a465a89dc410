// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of an MCP server's response body a Client
// will read, guarding against a misbehaving server streaming an unbounded
// body back.
const maxResponseBytes = 16 << 20

// Client speaks JSON-RPC 2.0 over HTTP to a single MCP server.
type Client struct {
	def        ServerDefinition
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a Client for one server definition.
func NewClient(def ServerDefinition, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(def.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if def.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(def.RateLimitPerSecond), 1)
	}

	return &Client{
		def: def,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: limiter,
		logger:  logger.With(slog.String("server_name", def.Name)),
	}
}

// Initialize performs the MCP handshake and returns the server's declared
// capabilities.
func (c *Client) Initialize(ctx context.Context) (*ServerCapabilities, error) {
	raw, err := c.call(ctx, "initialize", initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      clientInfo{Name: ClientName, Version: ClientVersion},
	})
	if err != nil {
		return nil, err
	}

	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding initialize result: %w", err)
	}

	caps := &ServerCapabilities{Raw: res.Capabilities}
	if len(res.Capabilities) > 0 {
		_ = json.Unmarshal(res.Capabilities, caps)
	}
	return caps, nil
}

// ListTools fetches the server's tool catalog. Entries that fail to decode
// are skipped and logged rather than aborting the whole call, so one
// malformed tool never hides the rest of a server's catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var res toolsListResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding tools/list result: %w", err)
	}

	tools := make([]ToolDefinition, 0, len(res.Tools))
	for i, entry := range res.Tools {
		var def ToolDefinition
		if err := json.Unmarshal(entry, &def); err != nil {
			c.logger.Warn("dropping malformed tool entry",
				slog.Int("index", i), slog.Any("error", err))
			continue
		}
		tools = append(tools, def)
	}
	return tools, nil
}

// CallTool invokes one tool and renders its content into a single string,
// joining any text parts with newlines. A result-level error takes
// precedence over content and always reports failure; when there's no
// error but content is missing or empty, the entire result is stringified
// so nothing about a malformed response is silently lost.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, bool, error) {
	raw, err := c.call(ctx, "tools/call", ToolCallRequest{Name: name, Arguments: arguments})
	if err != nil {
		return "", false, err
	}

	var res ToolCallResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", false, fmt.Errorf("decoding tools/call result: %w", err)
	}

	if res.Error != nil && res.Error.Message != "" {
		return "Error: " + res.Error.Message, true, nil
	}

	var parts []string
	for _, item := range res.Content {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) == 0 {
		return string(raw), res.IsError, nil
	}
	return strings.Join(parts, "\n"), res.IsError, nil
}

// TestConnection probes server liveness via a lightweight GET /health,
// falling back to a full initialize handshake if the server has no health
// endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.def.BaseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	if err := c.applyAuth(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		if resp.StatusCode == http.StatusNotFound {
			_, err := c.Initialize(ctx)
			return err
		}
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	_, initErr := c.Initialize(ctx)
	return initErr
}

// Ping is a convenience alias for TestConnection used by the coordinator's
// periodic health-check loop.
func (c *Client) Ping(ctx context.Context) error {
	return c.TestConnection(ctx)
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqBody := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimRight(c.def.BaseURL, "/") + "/mcp"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.def.Headers {
		httpReq.Header.Set(k, v)
	}
	if err := c.applyAuth(httpReq); err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Type: classifyTransportError(err), Message: err.Error(), Cause: err}
	}
	defer httpResp.Body.Close()

	limited := io.LimitReader(httpResp.Body, maxResponseBytes)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("mcp call complete",
		slog.String("method", method),
		slog.Int("status", httpResp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if httpResp.StatusCode >= 400 {
		return nil, classifyHTTPStatusError(httpResp.StatusCode, string(respBody))
	}

	var rpcResp jsonrpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("decoding json-rpc envelope: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// applyAuth sets the Authorization/credential headers a server's
// ServerDefinition demands.
func (c *Client) applyAuth(req *http.Request) error {
	auth := c.def.Auth
	switch auth.Type {
	case "", AuthNone:
		return nil
	case AuthBearer:
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", auth.Token))
	case AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	case AuthAPIKey:
		headerName := auth.HeaderName
		if headerName == "" {
			headerName = "X-API-Key"
		}
		req.Header.Set(headerName, auth.HeaderValue)
	default:
		return fmt.Errorf("unsupported auth type %q for server %q", auth.Type, c.def.Name)
	}
	return nil
}
