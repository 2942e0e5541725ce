// Command leveler runs the ChatSift leveling bot and its operator tooling.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChatSift/Social/config"
	"github.com/ChatSift/Social/pkg/logger"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leveler",
		Short:         "XP leveling for Discord guilds",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newFormulaCommand(),
		newLevelCommand(),
	)
	return root
}

// loadConfig loads the environment configuration and installs the default
// logger for the process.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = version
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  cfg.LogLevel(),
		// JSON for log aggregation in production, text while developing.
		JSON: cfg.IsProduction(),
	})
	slog.SetDefault(log)
	return log
}
