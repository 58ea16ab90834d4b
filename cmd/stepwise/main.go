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

// Command stepwise runs the step-by-step tutoring service.
//
// Usage:
//
//	stepwise serve --config config.yaml
//	stepwise ask "Why is the sky blue?" --subject Physics
//	stepwise validate --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/stepwise/pkg/config"
	"github.com/kadirpekel/stepwise/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Ask      AskCmd      `cmd:"" help:"Run an interactive tutoring session in the terminal."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error); overrides config."`
	LogFile   string `help:"Log file path (empty = stderr); overrides config."`
	LogFormat string `help:"Log format (simple or verbose); overrides config."`
}

// loadConfig loads the config file or falls back to defaults.
func (cli *CLI) loadConfig() (*config.Config, error) {
	if cli.Config == "" {
		return config.Default(), nil
	}
	return config.Load(cli.Config)
}

// setupLogging initializes the global logger from config, with CLI flags
// taking precedence. The returned cleanup closes the log file, if any.
func (cli *CLI) setupLogging(cfg *config.Config) (func(), error) {
	level := cli.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	format := cli.LogFormat
	if format == "" {
		format = cfg.Logging.Format
	}
	logFile := cli.LogFile
	if logFile == "" {
		logFile = cfg.Logging.File
	}

	output := os.Stderr
	cleanup := func() {}
	if logFile != "" {
		file, closeFile, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(logger.ParseLevel(level), output, format)
	return cleanup, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("stepwise"),
		kong.Description("Stepwise - step-by-step tutoring over an LLM"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
