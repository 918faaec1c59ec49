// Package kafka publishes tree events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/cienislaw/thirtybees/pkg/eventstream"
)

const (
	headerEventType     = "event_type"
	headerSchemaVersion = "schema_version"

	// flushInterval caps how long the writer holds a partial batch. kafka-go
	// defaults to one second.
	flushInterval = 10 * time.Millisecond
)

// Config configures the Kafka publisher.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes TreeChangedEvents as JSON messages keyed by operation, so
// events of one kind stay ordered within a partition. Publishes are
// synchronous and run on the mutating goroutine; the writer flushes every
// message on its own instead of waiting for a batch to fill.
type Publisher struct {
	w       writer
	timeout time.Duration
}

// NewPublisher creates a Kafka publisher for cfg.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	return newPublisher(newWriter(cfg), cfg.WriteTimeout), nil
}

func newWriter(cfg Config) *kafkago.Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           flushInterval,
	}
	if cfg.ClientID != "" {
		w.Transport = &kafkago.Transport{ClientID: cfg.ClientID}
	}
	return w
}

func newPublisher(w writer, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{w: w, timeout: timeout}
}

// PublishTreeChange writes event to the topic.
func (p *Publisher) PublishTreeChange(ctx context.Context, event *eventstream.TreeChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilTreeEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal tree event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Change.Op),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerSchemaVersion, Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish tree event %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
