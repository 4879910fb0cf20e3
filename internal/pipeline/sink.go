package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voicemetrics/vaac-pipeline/internal/enrich"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/kafka"
)

// EventSink receives the full batch of enriched records for a run. Write is
// all-or-nothing from the pipeline's perspective: a nil return means every
// record is durably accepted and the checkpoint may advance.
type EventSink interface {
	Write(ctx context.Context, records []enrich.Record) error
}

// KafkaSink publishes enriched records to a Kafka topic in one synchronous
// batch write, keyed by each record's dedup key so duplicates across
// overlapping windows land on the same partition.
type KafkaSink struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaSink creates a KafkaSink on the given producer.
func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		logger:   slog.Default().With("component", "kafka-sink"),
	}
}

// Write publishes the batch. An empty batch is a no-op success.
func (s *KafkaSink) Write(ctx context.Context, records []enrich.Record) error {
	if len(records) == 0 {
		return nil
	}
	events := make([]kafka.Event, 0, len(records))
	for _, rec := range records {
		events = append(events, kafka.Event{
			Key:   rec.Key(),
			Value: rec,
		})
	}
	if err := s.producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("%w: %v", perrors.ErrSinkWrite, err)
	}
	s.logger.Debug("batch written", "records", len(records))
	return nil
}
