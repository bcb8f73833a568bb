package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/circuit"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type countingRecorder struct {
	ok, failed int
}

func (r *countingRecorder) RecordRunEvent(_ string, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

func testEvent() *models.RunEvent {
	return &models.RunEvent{
		Type:        models.RunEventType,
		RunID:       "6f1c2a9e-run",
		Paths:       10,
		Steps:       60,
		Frequency:   12,
		Equities:    1,
		Rates:       1,
		Rank:        2,
		Workers:     4,
		Seeded:      true,
		CompletedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublishRunEvent(t *testing.T) {
	w := &fakeWriter{}
	rec := &countingRecorder{}
	p := NewProducerWithWriter(w, DefaultConfig(), rec)

	require.NoError(t, p.PublishRunEvent(context.Background(), testEvent()))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("6f1c2a9e-run"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event-type", msg.Headers[1].Key)
	assert.Equal(t, models.RunEventType, string(msg.Headers[1].Value))

	var decoded models.RunEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, *testEvent(), decoded)
	assert.Equal(t, 1, rec.ok)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishOpensBreakerOnRepeatedFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	rec := &countingRecorder{}
	cfg := DefaultConfig()
	cfg.Breaker = circuit.Config{MaxFailures: 2, Timeout: time.Hour}
	p := NewProducerWithWriter(w, cfg, rec)

	for i := 0; i < 2; i++ {
		assert.Error(t, p.PublishRunEvent(context.Background(), testEvent()))
	}
	assert.Equal(t, "OPEN", p.BreakerStats().State)

	w.err = nil
	err := p.PublishRunEvent(context.Background(), testEvent())
	assert.ErrorIs(t, err, circuit.ErrCircuitBreakerOpen)
	assert.Empty(t, w.messages)
	assert.Equal(t, 3, rec.failed)
}

func TestNewWriterValidates(t *testing.T) {
	_, err := NewWriter(&Config{Topic: "runs"})
	assert.Error(t, err)

	_, err = NewWriter(&Config{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	w, err := NewWriter(nil)
	require.NoError(t, err)
	assert.Equal(t, "esg.runs", w.Topic)
	require.NoError(t, w.Close())
}

func TestPingWithoutBrokers(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil, time.Second))
}
