package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"timereport/api/internal/app"
	"timereport/api/internal/cli"
	"timereport/api/internal/config"
	"timereport/api/internal/logging"
	"timereport/api/internal/redmine"
	"timereport/api/internal/report"
)

func main() {
	root := cli.NewRootCmd(cli.Options{
		NewGenerator: newGenerator,
		IsTerminal: func() bool {
			return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		},
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newGenerator(configPath string) (cli.Generator, error) {
	cfg := config.Load()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// stdout carries the report, logs go to stderr
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	client := redmine.New(redmine.Config{
		BaseURL: cfg.RedmineURL,
		APIKey:  cfg.RedmineAPIKey,
		Timeout: cfg.RedmineTimeout,
	}, logger)
	return app.New(cfg, report.NewService(client, logger), client, logger), nil
}
