package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahrav/policybot/internal/configuration"
)

var verbose bool

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policybot",
		Short: "Distributed question answering over the university policy corpus",
		Long: "policybot answers natural-language questions over the scraped " +
			"policy corpus by coordinating retrieval and generation workers. " +
			"Run a gateway, one or more workers, and index the corpus first.",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(gatewayCmd(), workerCmd(), indexCmd(), scrapeCmd())
	return cmd
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads .env (if present) and then the environment.
func loadConfig() (configuration.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}
	cfg := configuration.FromEnv()
	if err := cfg.Validate(); err != nil {
		return configuration.Config{}, err
	}
	return cfg, nil
}
