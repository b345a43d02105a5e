package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/config"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
)

var (
	// Global flags
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "podcastd",
	Short: "Conversational podcast host server",
	Long: `podcastd runs an AI podcast host that talks through a topic with one
listener over a websocket, streaming the reply token by token and sentence by
sentence so speech can start early.

Run "podcastd serve" to start the HTTP and websocket server.`,
	SilenceUsage: true,
}

// loadConfig reads the optional .env file, then the environment, and
// configures logging from the result.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.Configure(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, topicsCmd, memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd, memorySetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
