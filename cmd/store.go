// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/env"
	"github.com/LeeDigitalWorks/zapstats/pkg/kv"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
)

var defaultStoreConfig = kv.DefaultConfig()

func loadStoreConfig(cmd *cobra.Command) kv.Config {
	f := NewFlagLoader(cmd)

	cfg := defaultStoreConfig
	cfg.URL = f.String("redis_url")
	cfg.DialTimeout = f.Duration("dial_timeout")
	cfg.MaxRetries = f.Int("max_retries")
	cfg.MinRetryBackoff = f.Duration("min_retry_backoff")
	cfg.MaxRetryBackoff = f.Duration("max_retry_backoff")
	cfg.PoolSize = f.Int("pool_size")

	// An explicit flag is honoured anywhere; env and file values stay out of production.
	if cmd.Flags().Changed("key_namespace") {
		cfg.Namespace = f.String("key_namespace")
	} else {
		cfg.Namespace = env.KeyNamespace()
	}
	return cfg
}

// openStore builds the store client. A missing or invalid URL is fatal and
// reported before the process exits.
func openStore(cmd *cobra.Command) *kv.Client {
	client, err := kv.New(loadStoreConfig(cmd))
	if err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		if errors.Is(err, kv.ErrMissingURL) {
			logger.Fatal().Err(err).Msg("--redis_url is required. Set via flag, config, or REDIS_URL env var.")
		}
		logger.Fatal().Err(err).Msg("invalid store configuration")
	}
	return client
}
