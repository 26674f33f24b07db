package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/near-miss-analytics/internal/config"
	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes raw incident messages from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	cfg    *config.Config
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
// Offsets are committed explicitly after a message is loaded.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Reader{reader: r, cfg: cfg, logger: logger}
}

// ExtractBatch fetches up to batchSize messages, returning early with
// whatever arrived once the flush interval elapses. The interval bounds the
// wait for the first message too, so an empty batch with a nil error means
// nothing was read in time.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error) {
	flushCtx, cancel := context.WithTimeout(ctx, r.cfg.BatchFlushInterval)
	defer cancel()

	batch := make([]domain.RawMessage, 0, batchSize)
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(flushCtx)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return batch, nil
			}
			return batch, fmt.Errorf("fetch message: %w", err)
		}
		batch = append(batch, r.toRawMessage(msg))
	}
	return batch, nil
}

func (r *Reader) toRawMessage(msg kafkago.Message) domain.RawMessage {
	raw := mapMessageToRawMessage(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func mapMessageToRawMessage(msg kafkago.Message) domain.RawMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
