package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/config"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads
var logManager *logging.Manager

// cfg is the loaded configuration, populated by runInitialize before any subcommand runs
var cfg *config.Config

var configPath string

var rootCmd = &cobra.Command{
	Use:   "maingest",
	Short: "Content ingestion and classification pipeline",
	Long: "Maingest ingests marketing and business content from uploads, RSS feeds, and JSON APIs.\n\n" +
		"Files dropped into the upload directory or posted over HTTP are parsed, chunked, " +
		"classified against a controlled taxonomy, deduplicated at the file and chunk level, " +
		"and written to PostgreSQL with embeddings stored in qdrant for retrieval.",
	PersistentPreRunE: runInitialize,
}

func init() {
	// Create logging Manager in bootstrap mode (stderr text only)
	logManager = logging.NewManager()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	// Upgrade logging after config is available
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default", "configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(cfg.LogFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
		// Don't return error - continue with bootstrap mode
	}

	return nil
}

func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	// Ensure logging is properly closed on exit
	defer func() { _ = logManager.Close() }()

	err := rootCmd.Execute()

	if err != nil {
		cmd, _, _ := rootCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = rootCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
