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

// Package config loads the orchestrator's YAML configuration: the MCP
// server registry, reasoning provider settings, and the orchestration and
// session limits that bound the runtime.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	orcherrors "github.com/ajay-kumar-das/mcp-orchestration/pkg/errors"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
)

// Config is the complete orchestrator configuration.
type Config struct {
	Log           LogConfig            `yaml:"log"`
	Provider      ProviderConfig       `yaml:"provider"`
	Servers       []mcp.ServerDefinition `yaml:"servers"`
	Orchestration OrchestrationConfig  `yaml:"orchestration"`
	Session       SessionConfig        `yaml:"session"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"addSource"`
}

// ProviderConfig selects and configures the default reasoning provider.
// Only the fields needed to select and bound a provider live here; the
// provider adapter itself is an external collaborator.
type ProviderConfig struct {
	Default     string  `yaml:"default"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// OrchestrationConfig bounds the reasoning loop.
type OrchestrationConfig struct {
	DefaultMaxSteps       int           `yaml:"defaultMaxSteps"`
	DefaultTimeout        time.Duration `yaml:"defaultTimeout"`
	MaxConcurrentRequests int           `yaml:"maxConcurrentRequests"`
	RequestQueueSize      int           `yaml:"requestQueueSize"`

	// RetryAttempts is reserved for future use; the orchestration loop
	// never retries a failed reasoner or tool call itself.
	RetryAttempts int `yaml:"retryAttempts"`

	HealthCheckInterval time.Duration `yaml:"healthCheckInterval"`
	AutoDiscoveryEnabled bool         `yaml:"autoDiscoveryEnabled"`
	ToolCacheTTL        time.Duration `yaml:"toolCacheTTL"`
}

// SessionConfig bounds the in-memory session context manager.
type SessionConfig struct {
	MaxSessions     int           `yaml:"maxSessions"`
	MaxHistorySize  int           `yaml:"maxHistorySize"`
	SessionTimeout  time.Duration `yaml:"sessionTimeout"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Provider: ProviderConfig{
			Default:     "echo",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Orchestration: OrchestrationConfig{
			DefaultMaxSteps:       10,
			DefaultTimeout:        30 * time.Second,
			MaxConcurrentRequests: 50,
			RequestQueueSize:      100,
			HealthCheckInterval:   time.Minute,
			AutoDiscoveryEnabled:  true,
			ToolCacheTTL:          5 * time.Minute,
		},
		Session: SessionConfig{
			MaxSessions:     1000,
			MaxHistorySize:  50,
			SessionTimeout:  30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load reads and parses a YAML config file, applies environment variable
// substitution to auth secrets, fills unset fields from Default, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &orcherrors.ConfigError{Key: path, Reason: "reading config file", Cause: err}
	}

	loaded := Default()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, &orcherrors.ConfigError{Key: path, Reason: "parsing yaml", Cause: err}
	}

	resolveSecrets(loaded)

	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// envVarPattern matches the ${VAR_NAME} substitution syntax used for
// secret fields.
var envVarPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// resolveSecrets expands ${VAR_NAME} references in server auth fields
// against the process environment. Fields that aren't of that form are
// left untouched, so plain values in the config file still work.
func resolveSecrets(cfg *Config) {
	for i := range cfg.Servers {
		auth := &cfg.Servers[i].Auth
		auth.Token = expandEnv(auth.Token)
		auth.Password = expandEnv(auth.Password)
		auth.HeaderValue = expandEnv(auth.HeaderValue)
	}
}

func expandEnv(value string) string {
	m := envVarPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return os.Getenv(m[1])
}

// Validate checks that a loaded config is internally consistent.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name == "" {
			return &orcherrors.ValidationError{Field: "servers[].name", Message: "server name is required"}
		}
		if _, dup := seen[s.Name]; dup {
			return &orcherrors.ValidationError{Field: "servers[].name", Message: fmt.Sprintf("duplicate server name %q", s.Name)}
		}
		seen[s.Name] = struct{}{}
		if s.Enabled && s.BaseURL == "" {
			return &orcherrors.ValidationError{Field: "servers[].baseUrl", Message: fmt.Sprintf("server %q is enabled but has no baseUrl", s.Name)}
		}
	}
	if c.Orchestration.DefaultMaxSteps <= 0 {
		return &orcherrors.ValidationError{Field: "orchestration.defaultMaxSteps", Message: "must be positive"}
	}
	if c.Session.MaxSessions <= 0 {
		return &orcherrors.ValidationError{Field: "session.maxSessions", Message: "must be positive"}
	}
	return nil
}
