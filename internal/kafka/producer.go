package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/circuit"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// EventRecorder receives the outcome of every publish attempt
type EventRecorder interface {
	RecordRunEvent(sink string, err error)
}

// Producer publishes run events as JSON, keyed by run id
type Producer struct {
	writer   MessageWriter
	topic    string
	timeout  time.Duration
	breaker  *circuit.CircuitBreaker
	recorder EventRecorder
	log      *logger.Logger
}

// NewProducer creates a producer backed by a kafka-go writer
func NewProducer(cfg *Config, recorder EventRecorder) (*Producer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	w, err := NewWriter(cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerWithWriter(w, cfg, recorder), nil
}

// NewProducerWithWriter creates a producer on top of an existing writer
func NewProducerWithWriter(w MessageWriter, cfg *Config, recorder EventRecorder) *Producer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Producer{
		writer:   w,
		topic:    cfg.Topic,
		timeout:  timeout,
		breaker:  circuit.NewCircuitBreaker("kafka", cfg.Breaker),
		recorder: recorder,
		log:      logger.GetLogger("kafka.producer"),
	}
}

// PublishRunEvent implements esg.EventPublisher
func (p *Producer) PublishRunEvent(ctx context.Context, event *models.RunEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize run event: %w", err)
	}

	err = p.ProduceMessage(ctx, []byte(event.RunID), value, []MessageHeader{
		{Key: "content-type", Value: []byte("application/json")},
		{Key: "event-type", Value: []byte(event.Type)},
	})
	if p.recorder != nil {
		p.recorder.RecordRunEvent("kafka", err)
	}
	return err
}

// ProduceMessage writes one message through the circuit breaker
func (p *Producer) ProduceMessage(ctx context.Context, key, value []byte, headers []MessageHeader) error {
	var kafkaHeaders []kafkago.Header
	if len(headers) > 0 {
		kafkaHeaders = make([]kafkago.Header, len(headers))
		for i, h := range headers {
			kafkaHeaders[i] = kafkago.Header{Key: h.Key, Value: h.Value}
		}
	}

	msg := kafkago.Message{
		Key:     key,
		Value:   value,
		Headers: kafkaHeaders,
		Time:    time.Now(),
	}

	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.log.Errorf("Failed to produce message to %s: %v", p.topic, err)
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.log.Debugf("Message with key %s produced to %s", key, p.topic)
	return nil
}

// BreakerStats reports the state of the producer's circuit breaker
func (p *Producer) BreakerStats() circuit.Stats {
	return p.breaker.Stats()
}

// Close flushes and closes the writer
func (p *Producer) Close() error {
	p.log.Info("Closing Kafka producer")
	return p.writer.Close()
}
