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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kadirpekel/stepwise"
	"github.com/kadirpekel/stepwise/pkg/config"
	"github.com/kadirpekel/stepwise/pkg/knowledge"
	"github.com/kadirpekel/stepwise/pkg/logger"
	"github.com/kadirpekel/stepwise/pkg/observability"
	"github.com/kadirpekel/stepwise/pkg/server"
	"github.com/kadirpekel/stepwise/pkg/tutor"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(stepwise.GetVersion())
	return nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", cli.Config)
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port      int    `help:"Port to listen on (overrides config)."`
	Provider  string `help:"LLM provider (openai, anthropic; overrides config)."`
	Model     string `help:"Model name (overrides config)."`
	APIKey    string `name:"api-key" help:"API key (defaults to environment variable)."`
	Ingest    string `help:"Folder of .md/.txt files to embed into the knowledge store at startup." type:"path"`
	StoreKind string `name:"store" help:"Session store backend (memory, sql; overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	cleanup, err := cli.setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Info("shutting down")
		cancel()
	}()

	metrics, err := observability.InitMetrics(observability.MetricsConfig{
		Enabled: cfg.Metrics.Enabled,
		Path:    cfg.Metrics.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	defer llm.Close()
	llm = observability.InstrumentLLM(llm, metrics)

	sessions, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	ctrlOpts, err := controllerOptions(cfg)
	if err != nil {
		return err
	}
	ctrlOpts = append(ctrlOpts, tutor.WithObserver(metrics))
	controller := tutor.NewController(llm, ctrlOpts...)

	opts := []server.Option{
		server.WithLogger(logger.GetLogger()),
		server.WithMetrics(metrics, cfg.Metrics.Path),
	}

	if cfg.Knowledge.Enabled {
		ks, err := knowledge.New(knowledge.Config{
			Path:            cfg.Knowledge.Path,
			Collection:      cfg.Knowledge.Collection,
			TopK:            cfg.Knowledge.TopK,
			EmbedderBaseURL: cfg.Knowledge.Embedder.BaseURL,
			EmbedderAPIKey:  cfg.Knowledge.Embedder.APIKey,
			EmbedderModel:   cfg.Knowledge.Embedder.Model,
		}, knowledge.WithLogger(logger.GetLogger()))
		if err != nil {
			return fmt.Errorf("failed to open knowledge store: %w", err)
		}
		if c.Ingest != "" {
			if _, err := ks.IngestDirectory(ctx, c.Ingest); err != nil {
				return fmt.Errorf("failed to ingest %s: %w", c.Ingest, err)
			}
		}
		opts = append(opts, server.WithKnowledge(ks))
	}

	srv := server.New(cfg.Server, controller, sessions, opts...)
	return srv.Start(ctx)
}

func (c *ServeCmd) applyOverrides(cfg *config.Config) {
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Provider != "" {
		cfg.LLM.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.APIKey != "" {
		cfg.LLM.APIKey = c.APIKey
	}
	if c.StoreKind != "" {
		cfg.Store.Backend = c.StoreKind
	}
	cfg.SetDefaults()
}

// AskCmd drives a single session interactively on the terminal.
type AskCmd struct {
	Question string `arg:"" help:"The question to explain."`
	Subject  string `help:"Subject (Physics, Chemistry, Mathematics)." default:"unspecified"`
	Context  string `help:"Optional context text."`
}

func (c *AskCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := cli.setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	defer llm.Close()

	ctrlOpts, err := controllerOptions(cfg)
	if err != nil {
		return err
	}
	controller := tutor.NewController(llm, ctrlOpts...)

	ctx := context.Background()
	session := controller.Initialize(ctx, c.Question, tutor.ParseSubject(c.Subject), c.Context)
	fmt.Printf("Explaining in %d steps.\n\n", len(session.Steps))

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	for {
		controller.PresentCurrentStep(session)
		if session.Finished() {
			fmt.Println(session.ActiveText)
			return nil
		}

		step := session.CurrentStep()
		fmt.Printf("── %s (%d/%d)\n%s\n\n", step.Title, session.Cursor+1, len(session.Steps), session.ActiveText)

		for session.Phase == tutor.PhaseAwaitingFeedback {
			if !interactive {
				// Piped input: advance through the steps without feedback.
				controller.ProcessFeedback(ctx, session, "continue")
				break
			}

			fmt.Print("feedback> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return nil
			}
			line = strings.TrimSpace(line)

			controller.ProcessFeedback(ctx, session, line)
			if session.Phase == tutor.PhaseAwaitingFeedback {
				fmt.Printf("\n%s\n\n", session.ActiveText)
			}
		}
	}
}
