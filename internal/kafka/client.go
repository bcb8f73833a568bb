package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/circuit"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// Config contains configuration for the run-event producer
type Config struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	RequiredAcks int
	Breaker      circuit.Config
}

// DefaultConfig returns a single local broker configuration
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		Topic:        "esg.runs",
		ClientID:     "economic-scenario-generator",
		WriteTimeout: 5 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafkago.RequireOne),
		Breaker:      circuit.DefaultConfig(),
	}
}

// MessageHeader represents a Kafka message header
type MessageHeader struct {
	Key   string
	Value []byte
}

// MessageWriter is the part of *kafkago.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter builds a synchronous writer for cfg.Topic
func NewWriter(cfg *Config) (*kafkago.Writer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
		Transport: &kafkago.Transport{
			ClientID: cfg.ClientID,
		},
	}, nil
}

// Ping dials the first broker and lists the cluster
func Ping(ctx context.Context, brokers []string, timeout time.Duration) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &kafkago.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial failed: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka brokers fetch failed: %w", err)
	}

	logger.GetLogger("kafka.client").Debugf("Kafka broker %s reachable", brokers[0])
	return nil
}
