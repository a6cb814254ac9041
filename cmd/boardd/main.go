// Command boardd serves the dispatch scheduling board.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldboard/config"
	"fieldboard/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "boardd",
	Short: "Dispatch scheduling board backend",
	Long: `boardd runs the field-service scheduling board: technician lanes, drag and
drop placement with snapping, optimistic saves with rollback, and job status
changes.

Examples:
  boardd serve --config ./config/config.yaml
  boardd migrate`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default $CONFIG_PATH or ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the config path and builds the logger from it.
func loadConfig() (*config.Config, *zap.SugaredLogger, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	logger.Infow("configuration loaded", "path", path)
	return cfg, logger, nil
}
