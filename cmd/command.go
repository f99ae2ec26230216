// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "zapstats",
	Short: "ZapStats - real-time visitor presence and sessions",
	Long: `ZapStats ingests pageviews and keeps the ephemeral state behind a live
visitor counter: daily-salted visitor identifiers, unique-visitor dedup,
a five minute presence window and sliding 24 hour sessions.`,
	PersistentPreRun: initializeConfig,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
	rootCmd.PersistentFlags().String("log_level", "", "Log level (trace, debug, info, warn, error). Env: LOG_LEVEL")

	// Store connection, shared by every command that talks to the store
	rootCmd.PersistentFlags().String("redis_url", "", "Ephemeral store URL, e.g. redis://localhost:6379/0. Required. Env: REDIS_URL")
	rootCmd.PersistentFlags().String("key_namespace", "", "Key prefix for isolated runs (ignored when ENV=production)")
	rootCmd.PersistentFlags().Duration("dial_timeout", defaultStoreConfig.DialTimeout, "Store dial timeout")
	rootCmd.PersistentFlags().Int("max_retries", defaultStoreConfig.MaxRetries, "Retries per store command")
	rootCmd.PersistentFlags().Duration("min_retry_backoff", defaultStoreConfig.MinRetryBackoff, "Minimum backoff between command retries")
	rootCmd.PersistentFlags().Duration("max_retry_backoff", defaultStoreConfig.MaxRetryBackoff, "Maximum backoff between command retries")
	rootCmd.PersistentFlags().Int("pool_size", defaultStoreConfig.PoolSize, "Store connection pool size")

	viper.BindPFlags(rootCmd.PersistentFlags())
}

// initializeConfig merges the optional zapstats config file and applies the
// configured log level.
func initializeConfig(cmd *cobra.Command, args []string) {
	utils.LoadConfiguration("zapstats", false)

	level := NewFlagLoader(cmd).String("log_level")
	if level == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		logger.Warn().Err(err).Str("log_level", level).Msg("Ignoring invalid log level")
		return
	}
	logger.SetLevel(lvl)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
