package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/internal/output"
	"github.com/jackzampolin/quill/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "LLM-driven multi-chapter story generation",
	Long: `Quill drives a large language model to write a complete multi-chapter story.

A run goes through these stages:
  - Expand a short premise into a one-paragraph synopsis
  - Split the synopsis into a fixed number of chapter blueprints (JSON),
    re-prompting with stricter instructions until the plan is valid
  - Write each chapter with a rolling "story so far" summary and a
    lookahead summary of the chapters still to come

Artifacts are written to ~/.quill/sessions/<timestamp>/.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal
		_ = godotenv.Load()

		if _, err := output.ParseFormat(outputFormat); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.quill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "quill home directory (default: ~/.quill)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)",
	)

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(versionCmd)
}

// env is what every command needs after flags are parsed.
type env struct {
	home    *home.Dir
	config  *config.Config
	logger  *slog.Logger
	printer *output.Printer
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	if path := mgr.ConfigFile(); path != "" {
		logger.Debug("loaded config", "file", path)
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return &env{
		home:    h,
		config:  cfg,
		logger:  logger,
		printer: output.NewPrinter(cmd.OutOrStdout(), format),
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
