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

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/stepwise/pkg/config"
	"github.com/kadirpekel/stepwise/pkg/logger"
	"github.com/kadirpekel/stepwise/pkg/model"
	"github.com/kadirpekel/stepwise/pkg/model/anthropic"
	"github.com/kadirpekel/stepwise/pkg/model/openai"
	"github.com/kadirpekel/stepwise/pkg/store"
	"github.com/kadirpekel/stepwise/pkg/tokens"
	"github.com/kadirpekel/stepwise/pkg/tutor"
)

// buildLLM constructs the configured provider client.
func buildLLM(cfg *config.Config) (model.LLM, error) {
	switch cfg.LLM.Provider {
	case "openai":
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.New(openai.Config{
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			APIVersion:  cfg.LLM.APIVersion,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
		})
	case "anthropic":
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return anthropic.New(anthropic.Config{
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// buildStore constructs the configured session store.
func buildStore(cfg *config.Config) (store.Service, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sql":
		return store.OpenSQLStore(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.MaxConns, cfg.Store.MaxIdle)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

// generateConfig maps the LLM config onto per-call generation parameters.
func generateConfig(cfg *config.Config) *model.GenerateConfig {
	gen := &model.GenerateConfig{}
	if cfg.LLM.Temperature != nil {
		temp := *cfg.LLM.Temperature
		gen.Temperature = &temp
	}
	if cfg.LLM.MaxTokens > 0 {
		maxTok := cfg.LLM.MaxTokens
		gen.MaxTokens = &maxTok
	}
	return gen
}

// controllerOptions assembles the common controller options from config.
func controllerOptions(cfg *config.Config) ([]tutor.Option, error) {
	opts := []tutor.Option{
		tutor.WithLogger(logger.GetLogger()),
		tutor.WithMaxClarifications(cfg.Tutor.MaxClarifications),
		tutor.WithGenerateConfig(generateConfig(cfg)),
	}

	if cfg.Tutor.ContextBudget > 0 {
		counter, err := tokens.NewCounter(cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create token counter: %w", err)
		}
		budget := cfg.Tutor.ContextBudget
		opts = append(opts, tutor.WithContextTrimmer(func(s string) string {
			return counter.Truncate(s, budget)
		}))
	}

	return opts, nil
}
