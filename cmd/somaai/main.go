// Package main provides the somaai command: the HTTP API, the job worker
// and maintenance subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/nativelog"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "somaai",
	Short: "Curriculum-grounded question answering for Rwandan classrooms",
	Long: `somaai answers student and teacher questions from ingested curriculum
documents, generates quizzes and keeps the document catalog.

Run "somaai serve" for the HTTP API and "somaai worker" for a standalone
job worker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to YAML config file")
	rootCmd.Version = Version
}

// loadRuntime reads the config and builds the process logger.
func loadRuntime() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := nativelog.NewZapLogger(cfg.LogDir(), cfg.IsDev())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	return cfg, logger, nil
}
