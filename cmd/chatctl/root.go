// File: cmd/chatctl/root.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Operator tool for a relaychat store",
	Long: `chatctl works directly on the store a relaychat server is configured
with: it prepares tables, prints what a restart would load and issues
relay tokens for peer servers.`,
	SilenceUsage: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (same keys as the server's CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log store activity")

	rootCmd.AddCommand(setupCmd, dumpCmd, statsCmd, tokenCmd)
}

// loadConfig reads the server configuration, honoring --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("CONFIG_FILE", path); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func commandLogger(cmd *cobra.Command, cfg *config.Config) logger.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return logger.New("chatctl", cfg.Environment, "debug")
	}
	return logger.NoOpLogger{}
}
