package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/config"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes every quake of a snapshot as a GeoJSON feature message.
// It implements pipeline.SnapshotLoader.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return newWriter(w, cfg.BatchSize, logger)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadSnapshot publishes the snapshot's quakes in chunks of batchSize. Messages
// are keyed by quake id so revisions of one event land on one partition.
func (w *Writer) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Quakes) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(snap.Quakes))
	for i := range snap.Quakes {
		msg, err := serializeToMessage(snap.ID, snap.Quakes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	for start := 0; start < len(msgs); start += w.batchSize {
		end := min(start+w.batchSize, len(msgs))
		if err := w.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("write messages %d-%d: %w", start, end, err)
		}
	}

	w.logger.Debug("snapshot published", "snapshot_id", snap.ID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a quake's map feature into a Kafka message.
func serializeToMessage(snapshotID string, q domain.Quake) (kafkago.Message, error) {
	data, err := json.Marshal(domain.ToFeature(q))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize quake %s: %w", q.ID, err)
	}

	bucket := ""
	if q.Bucket != nil {
		bucket = strconv.Itoa(*q.Bucket)
	}

	return kafkago.Message{
		Key:   []byte(q.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(q.Source)},
			{Key: "bucket", Value: []byte(bucket)},
			{Key: "snapshot_id", Value: []byte(snapshotID)},
			{Key: "processed_at", Value: []byte(q.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
