// Copyright 2025 Kadir Pekel
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

// Package config defines the Stepwise configuration model and its YAML
// loader. String values support ${VAR} and ${VAR:-default} environment
// expansion.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Tutor     TutorConfig     `yaml:"tutor"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the language model provider.
type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// APIKey supports ${ENV_VAR} expansion.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// APIVersion switches the openai provider to Azure's auth scheme.
	APIVersion  string        `yaml:"api_version"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// TutorConfig configures session behavior.
type TutorConfig struct {
	// MaxClarifications caps clarify/reexplain loops per step. Zero means
	// unlimited, matching the historical behavior.
	MaxClarifications int `yaml:"max_clarifications"`

	// ContextBudget is the token budget for caller-supplied context text;
	// longer context is truncated before prompting. Zero disables trimming.
	ContextBudget int `yaml:"context_budget"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	// Backend is "memory" or "sql".
	Backend string `yaml:"backend"`
	// Driver is "sqlite", "postgres", or "mysql" (sql backend only).
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// KnowledgeConfig configures the optional context retrieval store.
type KnowledgeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	TopK       int    `yaml:"top_k"`

	Embedder EmbedderConfig `yaml:"embedder"`
}

// EmbedderConfig configures the OpenAI-compatible embeddings endpoint used
// by the knowledge store.
type EmbedderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is "simple" or "verbose".
	Format string `yaml:"format"`
	// File is an optional log file path; empty logs to stderr.
	File string `yaml:"file"`
}

// SetDefaults fills unset fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 5
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Feedback processing blocks on an LLM round trip.
		c.Server.WriteTimeout = 180 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Backend == "sql" {
		if c.Store.Driver == "" {
			c.Store.Driver = "sqlite"
		}
		if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
			c.Store.DSN = "stepwise.db"
		}
		if c.Store.MaxConns == 0 {
			c.Store.MaxConns = 10
		}
		if c.Store.MaxIdle == 0 {
			c.Store.MaxIdle = 2
		}
	}

	if c.Knowledge.Collection == "" {
		c.Knowledge.Collection = "knowledge"
	}
	if c.Knowledge.TopK == 0 {
		c.Knowledge.TopK = 3
	}
	if c.Knowledge.Embedder.Model == "" {
		c.Knowledge.Embedder.Model = "text-embedding-3-small"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":

	default:
		return fmt.Errorf("unsupported llm provider: %s (supported: openai, anthropic)", c.LLM.Provider)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case "memory":

	case "sql":
		switch c.Store.Driver {
		case "sqlite", "postgres", "mysql":

		default:
			return fmt.Errorf("unsupported store driver: %s (supported: sqlite, postgres, mysql)", c.Store.Driver)
		}
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for the sql backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s (supported: memory, sql)", c.Store.Backend)
	}

	if c.Tutor.MaxClarifications < 0 {
		return fmt.Errorf("tutor max_clarifications cannot be negative")
	}
	if c.Tutor.ContextBudget < 0 {
		return fmt.Errorf("tutor context_budget cannot be negative")
	}

	if c.Knowledge.Enabled && c.Knowledge.Embedder.APIKey == "" {
		return fmt.Errorf("knowledge embedder api_key is required when knowledge is enabled")
	}

	return nil
}
