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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType categorizes a transport-level failure talking to an MCP server.
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeServer     ErrorType = "server"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeClient     ErrorType = "client"
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeCancelled  ErrorType = "cancelled"
)

// TransportError wraps a failure reaching or talking to an MCP server, with
// enough classification for the orchestration loop to decide whether it is
// worth marking the server unhealthy.
type TransportError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("mcp transport error [%s] (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mcp transport error [%s]: %s", e.Type, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func classifyTransportError(err error) ErrorType {
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorTypeConnection
	}

	return ErrorTypeConnection
}

func classifyHTTPStatusError(status int, body string) *TransportError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &TransportError{Type: ErrorTypeAuth, StatusCode: status, Message: body}
	case status == http.StatusTooManyRequests:
		return &TransportError{Type: ErrorTypeRateLimit, StatusCode: status, Message: body}
	case status >= 500:
		return &TransportError{Type: ErrorTypeServer, StatusCode: status, Message: body}
	default:
		return &TransportError{Type: ErrorTypeClient, StatusCode: status, Message: body}
	}
}
