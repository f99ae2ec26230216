// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/LeeDigitalWorks/zapstats/pkg/sink"
	"github.com/LeeDigitalWorks/zapstats/pkg/tracking"

	"github.com/spf13/cobra"
)

const (
	recorderLog        = "log"
	recorderKafka      = "kafka"
	recorderClickHouse = "clickhouse"
	recorderPostgres   = "postgres"
	recorderMySQL      = "mysql"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildRecorder returns the durable sink selected by --recorder and the
// closer that flushes it on shutdown.
func buildRecorder(ctx context.Context, cmd *cobra.Command) (tracking.Recorder, io.Closer, error) {
	f := NewFlagLoader(cmd)

	switch kind := f.String("recorder"); kind {
	case recorderLog, "":
		return tracking.LogRecorder{}, nopCloser{}, nil

	case recorderKafka:
		cfg := sink.DefaultKafkaConfig(f.StringSlice("kafka_brokers"))
		if topic := f.String("kafka_topic"); topic != "" {
			cfg.Topic = topic
		}
		cfg.TLS = f.Bool("kafka_tls")
		cfg.SASLMechanism = f.String("kafka_sasl_mechanism")
		cfg.SASLUsername = f.String("kafka_sasl_username")
		cfg.SASLPassword = f.String("kafka_sasl_password")
		r, err := sink.NewKafkaRecorder(cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil

	case recorderClickHouse:
		cfg := sink.DefaultClickHouseConfig()
		cfg.DSN = f.String("clickhouse_dsn")
		if table := f.String("clickhouse_table"); table != "" {
			cfg.Table = table
		}
		cfg.BatchSize = f.Int("clickhouse_batch_size")
		cfg.FlushInterval = f.Duration("clickhouse_flush_interval")
		r, err := sink.NewClickHouseRecorder(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil

	case recorderPostgres, recorderMySQL:
		cfg := sink.DefaultSQLConfig()
		cfg.Driver = sink.Driver(kind)
		cfg.DSN = f.String("sql_dsn")
		if table := f.String("sql_table"); table != "" {
			cfg.Table = table
		}
		cfg.BatchSize = f.Int("sql_batch_size")
		cfg.FlushInterval = f.Duration("sql_flush_interval")
		r, err := sink.NewSQLRecorder(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil

	default:
		return nil, nil, fmt.Errorf("unknown recorder %q (want one of %s)", kind,
			strings.Join([]string{recorderLog, recorderKafka, recorderClickHouse, recorderPostgres, recorderMySQL}, ", "))
	}
}
