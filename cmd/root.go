// Package cmd implements the hypermath command tree.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linanwx/hypermath/config"
	"github.com/linanwx/hypermath/logger"
)

var (
	flagConfigDir  string
	flagBackendURL string

	// appCfg is loaded once per invocation by the root pre-run hook.
	appCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hypermath",
	Short: "HyperMath explains math concepts with visual animations",
	Long: `HyperMath is a conversational math tutor. Each question is answered with a
written explanation and, when available, a rendered animation.

Front-ends:
  chat     interactive terminal chat
  web      browser chat over websocket
  ask      one question, one answer

The explanation service can be any server implementing POST /api/chat;
'hypermath backend' runs the bundled one.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntimeConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "Config directory (default ~/.hypermath, or $HYPERMATH_CONFIG_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagBackendURL, "backend-url", "", "Explanation service base URL (overrides config)")
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func loadRuntimeConfig(cmd *cobra.Command, _ []string) error {
	config.SetConfigDir(flagConfigDir)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if u := strings.TrimSpace(flagBackendURL); u != "" {
		cfg.Backend.URL = u
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.BuildLoggerConfig(), configDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	logger.Debug("config loaded", "command", cmd.Name(), "backendUrl", cfg.Backend.URL)
	appCfg = cfg
	return nil
}
