// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink holds the durable pageview recorders: a Kafka producer for
// streaming consumers and a batching ClickHouse writer for analytics queries.
package sink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/tracking"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// ErrNoBrokers is returned by NewKafkaRecorder without broker addresses.
var ErrNoBrokers = errors.New("sink: at least one kafka broker is required")

// KafkaConfig configures the Kafka recorder.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"kafka_brokers"`

	// Topic is the Kafka topic for pageviews (default: "pageviews").
	Topic string `mapstructure:"kafka_topic"`

	// RequiredAcks: 0=none, 1=leader, -1=all (default: 1).
	RequiredAcks int `mapstructure:"kafka_required_acks"`

	// Compression: "none", "gzip", "snappy", "lz4", "zstd" (default: "snappy").
	Compression string `mapstructure:"kafka_compression"`

	// WriteTimeout bounds each send (default: 10s).
	WriteTimeout time.Duration `mapstructure:"kafka_write_timeout"`

	TLS           bool `mapstructure:"kafka_tls"`
	TLSSkipVerify bool `mapstructure:"kafka_tls_skip_verify"`

	// SASLMechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512. Empty disables SASL.
	SASLMechanism string `mapstructure:"kafka_sasl_mechanism"`
	SASLUsername  string `mapstructure:"kafka_sasl_username"`
	SASLPassword  string `mapstructure:"kafka_sasl_password"`
}

// DefaultKafkaConfig returns a KafkaConfig with default values.
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		Topic:        "pageviews",
		RequiredAcks: 1,
		Compression:  "snappy",
		WriteTimeout: 10 * time.Second,
	}
}

// KafkaRecorder publishes each event as a JSON message keyed by visitor id,
// so one visitor's pageviews land on one partition in order.
type KafkaRecorder struct {
	producer sarama.SyncProducer
	topic    string
}

var _ tracking.Recorder = (*KafkaRecorder)(nil)

func NewKafkaRecorder(cfg KafkaConfig) (*KafkaRecorder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		cfg.Topic = "pageviews"
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafka producer creation failed: %w", err)
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("compression", cfg.Compression).
		Int("required_acks", cfg.RequiredAcks).
		Msg("kafka pageview recorder connected")

	return &KafkaRecorder{producer: producer, topic: cfg.Topic}, nil
}

func saramaConfig(cfg KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	switch cfg.RequiredAcks {
	case 0:
		config.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		config.Producer.RequiredAcks = sarama.WaitForAll
	default:
		config.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch cfg.Compression {
	case "gzip":
		config.Producer.Compression = sarama.CompressionGZIP
	case "lz4":
		config.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		config.Producer.Compression = sarama.CompressionZSTD
	case "none", "":
		config.Producer.Compression = sarama.CompressionNone
	default:
		config.Producer.Compression = sarama.CompressionSnappy
	}

	if cfg.WriteTimeout > 0 {
		config.Producer.Timeout = cfg.WriteTimeout
		config.Net.WriteTimeout = cfg.WriteTimeout
		config.Net.ReadTimeout = cfg.WriteTimeout
	}

	if cfg.TLS {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
	}

	if cfg.SASLMechanism != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = cfg.SASLUsername
		config.Net.SASL.Password = cfg.SASLPassword

		switch cfg.SASLMechanism {
		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{mechanism: scram.SHA256}
			}
		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{mechanism: scram.SHA512}
			}
		default:
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

func (r *KafkaRecorder) Record(ctx context.Context, ev tracking.Event) error {
	start := time.Now()

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka encode: %w", err)
	}

	partition, offset, err := r.producer.SendMessage(&sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(ev.VisitorID.String()),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		EventsTotal.WithLabelValues("kafka", "failed").Inc()
		return fmt.Errorf("kafka publish: %w", err)
	}

	EventsTotal.WithLabelValues("kafka", "sent").Inc()
	FlushDuration.WithLabelValues("kafka").Observe(time.Since(start).Seconds())
	logger.Ctx(ctx).Debug().
		Str("topic", r.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published pageview")
	return nil
}

func (r *KafkaRecorder) Close() error {
	if r.producer != nil {
		return r.producer.Close()
	}
	return nil
}

// scramClient implements sarama.SCRAMClient.
type scramClient struct {
	mechanism    scram.HashGeneratorFcn
	conversation *scram.ClientConversation
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.mechanism.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.conversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.conversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conversation.Done()
}
