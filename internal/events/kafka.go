package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds broker settings for telemetry and the candle feed
type KafkaConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Brokers        []string      `json:"brokers" yaml:"brokers"`
	TelemetryTopic string        `json:"telemetry_topic" yaml:"telemetry_topic" default:"engine.telemetry"`
	CandleTopic    string        `json:"candle_topic" yaml:"candle_topic"`
	GroupID        string        `json:"group_id" yaml:"group_id" default:"adaptive-engine"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout" default:"5s"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes telemetry events as JSON keyed by event type
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
	logger  *logging.Logger
}

// NewKafkaSink creates an async telemetry producer
func NewKafkaSink(cfg KafkaConfig, logger *logging.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.TelemetryTopic == "" {
		return nil, fmt.Errorf("telemetry topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TelemetryTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Gzip,
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
	}
	return newKafkaSink(writer, cfg.WriteTimeout, logger), nil
}

func newKafkaSink(w messageWriter, timeout time.Duration, logger *logging.Logger) *KafkaSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaSink{writer: w, timeout: timeout, logger: logger.WithComponent("kafka_sink")}
}

// Publish writes one event. Failures are logged and dropped.
func (s *KafkaSink) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("Failed to encode telemetry event", "type", string(event.Type), "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(event.Type), Value: value, Time: event.Timestamp}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("Failed to publish telemetry event", "type", string(event.Type), "error", err.Error())
	}
}

// Close flushes and closes the producer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// CandleHandler consumes the candles decoded from one message. batch is
// true when the message was an array, even a one-element one.
type CandleHandler func(ctx context.Context, candles []market.Candle, batch bool) error

// KafkaFeed reads candles from a topic. A message holds one candle object
// or an array of candles.
type KafkaFeed struct {
	reader messageReader
	logger *logging.Logger
}

// NewKafkaFeed creates a consumer-group reader on the candle topic
func NewKafkaFeed(cfg KafkaConfig, logger *logging.Logger) (*KafkaFeed, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.CandleTopic == "" {
		return nil, fmt.Errorf("candle topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.CandleTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaFeed(reader, logger), nil
}

func newKafkaFeed(r messageReader, logger *logging.Logger) *KafkaFeed {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaFeed{reader: r, logger: logger.WithComponent("kafka_feed")}
}

// DecodeCandles parses a single candle object or an array of candles.
// isBatch reports which form was sent.
func DecodeCandles(value []byte) (candles []market.Candle, isBatch bool, err error) {
	var batch []market.Candle
	if err := json.Unmarshal(value, &batch); err == nil {
		return batch, true, nil
	}

	var c market.Candle
	if err := json.Unmarshal(value, &c); err != nil {
		return nil, false, fmt.Errorf("decode candle: %w", err)
	}
	return []market.Candle{c}, false, nil
}

// Run consumes until ctx is cancelled. Undecodable messages are committed
// and skipped; handler errors leave the message uncommitted and stop the
// feed.
func (f *KafkaFeed) Run(ctx context.Context, handle CandleHandler) error {
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch candle message: %w", err)
		}

		candles, batch, err := DecodeCandles(msg.Value)
		if err != nil {
			f.logger.Warn("Skipping malformed candle message", "offset", msg.Offset, "error", err.Error())
		} else if err := handle(ctx, candles, batch); err != nil {
			return fmt.Errorf("handle candles at offset %d: %w", msg.Offset, err)
		}

		if err := f.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit candle message: %w", err)
		}
	}
}

// Close closes the reader
func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}
