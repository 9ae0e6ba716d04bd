// Command gateway is the merchant update gate: a reverse proxy that throttles
// merchant update requests, plus commands to inspect and edit the histories.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"merchant-update-gate/internal/config"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// stdout é trocado nos testes.
var stdout io.Writer = os.Stdout

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "merchant-gate",
		Usage:   "Throttle merchant update attempts in front of the merchant API",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			historyCommand(),
			checkCommand(),
			recordCommand(),
			forgetCommand(),
			versionCommand(),
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			Sources: cli.EnvVars("MUG_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (trace, debug, info, warn, error, fatal, panic)",
		},
		&cli.StringFlag{
			Name:  "storage-dsn",
			Usage: "History storage (memory://, file:///path, redis://..., postgres://...)",
		},
	}
}

// loadConfig lê arquivo + env e aplica as flags por cima.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if path == "" {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	// --- CLI overrides ---
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("storage-dsn"); v != "" {
		cfg.Storage.DSN = v
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger.WithField("app", "merchant-gate")
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Fprintf(stdout, "merchant-gate %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
