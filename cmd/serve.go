// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/api"
	"github.com/LeeDigitalWorks/zapstats/pkg/debug"
	"github.com/LeeDigitalWorks/zapstats/pkg/dedup"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/presence"
	"github.com/LeeDigitalWorks/zapstats/pkg/session"
	"github.com/LeeDigitalWorks/zapstats/pkg/sink"
	"github.com/LeeDigitalWorks/zapstats/pkg/tracking"
	"github.com/LeeDigitalWorks/zapstats/pkg/utils"
	"github.com/LeeDigitalWorks/zapstats/pkg/visitor"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServeOpts holds the configuration for the ingestion server
type ServeOpts struct {
	IP        string
	HTTPPort  int
	DebugPort int

	VisitorSecret string
	API           api.Config

	ShutdownTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion server",
	Long: `Start the ZapStats ingestion server. It accepts pageviews on POST /api/track,
serves the live visitor count on GET /api/active, and exposes metrics,
pprof and health checks on the debug port.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()

	// Network binding
	f.String("ip", "0.0.0.0", "IP address to bind to")
	f.Int("http_port", 8080, "API HTTP port")
	f.Int("debug_port", 8085, "Debug/metrics HTTP port")
	f.Duration("shutdown_timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	// Visitor identity
	f.String("visitor_secret", "", "Secret for the daily visitor salt. Env: VISITOR_SECRET. Random per process when empty.")

	// Ingestion
	apiDefaults := api.DefaultConfig()
	f.Float64("track_rps", apiDefaults.TrackRPS, "Per-IP pageview rate limit (0 = unlimited)")
	f.Int("track_burst", apiDefaults.TrackBurst, "Per-IP pageview burst")
	f.String("allowed_origin", apiDefaults.AllowedOrigin, "Access-Control-Allow-Origin for the tracking endpoint")

	// Durable sink
	chDefaults := sink.DefaultClickHouseConfig()
	sqlDefaults := sink.DefaultSQLConfig()
	f.String("recorder", recorderLog, "Pageview sink: log, kafka, clickhouse, postgres or mysql")
	f.StringSlice("kafka_brokers", nil, "Kafka broker addresses (recorder=kafka)")
	f.String("kafka_topic", "pageviews", "Kafka topic for pageview events")
	f.Bool("kafka_tls", false, "Use TLS for Kafka broker connections")
	f.String("kafka_sasl_mechanism", "", "Kafka SASL mechanism: PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512")
	f.String("kafka_sasl_username", "", "Kafka SASL username")
	f.String("kafka_sasl_password", "", "Kafka SASL password. Env: KAFKA_SASL_PASSWORD")
	f.String("clickhouse_dsn", "", "ClickHouse DSN (recorder=clickhouse)")
	f.String("clickhouse_table", chDefaults.Table, "ClickHouse pageview table")
	f.Int("clickhouse_batch_size", chDefaults.BatchSize, "Pageviews per ClickHouse insert")
	f.Duration("clickhouse_flush_interval", chDefaults.FlushInterval, "Maximum time between ClickHouse inserts")
	f.String("sql_dsn", "", "PostgreSQL or MySQL DSN (recorder=postgres|mysql). Env: SQL_DSN")
	f.String("sql_table", sqlDefaults.Table, "SQL pageview table")
	f.Int("sql_batch_size", sqlDefaults.BatchSize, "Pageviews per SQL transaction")
	f.Duration("sql_flush_interval", sqlDefaults.FlushInterval, "Maximum time between SQL inserts")

	viper.BindPFlags(f)
}

func runServe(cmd *cobra.Command, args []string) {
	opts := loadServeOpts(cmd)

	client := openStore(cmd)
	defer client.Close()

	// Warm the pool; the server still starts when the store is down and
	// degrades per request until it comes back.
	connectCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	if err := client.Connect(connectCtx); err != nil {
		logger.Warn().Err(err).Msg("ephemeral store unreachable at startup, serving degraded")
	}
	cancel()
	debug.SetReadyCheck(client.Ping)

	secret := []byte(opts.VisitorSecret)
	if len(secret) == 0 {
		var err error
		secret, err = visitor.NewRandomSecret()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate visitor secret")
		}
		logger.Warn().Msg("No visitor_secret configured; visitor ids are stable only for this process")
	}

	recorder, recorderCloser, err := buildRecorder(cmd.Context(), cmd)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pageview recorder")
	}

	pipeline := tracking.NewPipeline(tracking.Config{
		Hasher:   visitor.NewHasher(secret),
		Dedup:    dedup.New(client),
		Presence: presence.New(client),
		Sessions: session.New(client),
		Recorder: recorder,
	})
	handler := api.NewHandler(pipeline, opts.API)

	logger.Info().
		Str("namespace", client.Namespace()).
		Str("recorder", NewFlagLoader(cmd).String("recorder")).
		Float64("track_rps", opts.API.TrackRPS).
		Int("track_burst", opts.API.TrackBurst).
		Msg("Ingestion server configuration")

	httpServer := startHTTPServer(handler.Mux(), opts.IP, opts.HTTPPort)
	debugServer := startHTTPServer(debug.GetMux(), opts.IP, opts.DebugPort)

	debug.SetReady()

	waitForShutdown()

	debug.SetNotReady()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API server shutdown")
	}
	if err := debugServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("debug server shutdown")
	}
	if err := recorderCloser.Close(); err != nil {
		logger.Warn().Err(err).Msg("pageview recorder close")
	}
	logger.Info().Msg("Shutdown complete")
}

func loadServeOpts(cmd *cobra.Command) ServeOpts {
	f := NewFlagLoader(cmd)

	return ServeOpts{
		IP:            f.String("ip"),
		HTTPPort:      f.Int("http_port"),
		DebugPort:     f.Int("debug_port"),
		VisitorSecret: f.String("visitor_secret"),
		API: api.Config{
			TrackRPS:      f.Float64("track_rps"),
			TrackBurst:    f.Int("track_burst"),
			AllowedOrigin: f.String("allowed_origin"),
		},
		ShutdownTimeout: f.Duration("shutdown_timeout"),
	}
}

func startHTTPServer(handler http.Handler, ip string, port int) *http.Server {
	listener, err := utils.NewListener(utils.JoinHostPort(ip, port))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create HTTP listener")
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("http_addr", utils.JoinHostPort(ip, port)).Msg("Starting HTTP server")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()
	return httpServer
}

func waitForShutdown() {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	<-stopChan
}
