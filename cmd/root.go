package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/selfie-finder/internal/config"
	"github.com/kozaktomas/selfie-finder/internal/logging"
)

var (
	captureDir string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "selfie-finder",
	Short: "Find your event photos by taking a selfie",
	Long: `Selfie Finder takes a selfie with the local camera (or uses an existing photo),
sends it to a face-matching search service and lists the event photos
the same person appears in.

Configuration is read from an optional TOML file (--config or SELFIE_FINDER_CONFIG)
and environment variables such as GALLERY_API_URL; a .env file in the working
directory is loaded first.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save search service responses for testing")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig loads the configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
