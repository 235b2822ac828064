// Package kafka consumes the location-fix feed from the positioning
// collaborator.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/roadmedic/reportsync/internal/config"
	"github.com/roadmedic/reportsync/internal/domain"
)

// FixReader consumes location fixes from the fix topic. It implements
// proximity.FixSource.
type FixReader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewFixReader creates a consumer on the configured fix topic.
func NewFixReader(cfg *config.Config, logger *slog.Logger) *FixReader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaFixTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &FixReader{reader: r, logger: logger}
}

// fixMessage is the feed's wire shape. "at" is milliseconds since epoch
// and may be absent; the broker timestamp is the fallback.
type fixMessage struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	At  int64   `json:"at"`
}

// Next blocks until the feed delivers the next valid fix or the context is
// cancelled. Malformed or out-of-range messages are skipped with a warning
// rather than surfaced; a position stream recovers on the next reading.
func (r *FixReader) Next(ctx context.Context) (domain.Fix, error) {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			return domain.Fix{}, fmt.Errorf("read fix: %w", err)
		}

		fix, err := parseFix(msg.Value, msg.Time)
		if err != nil {
			r.logger.Warn("skipping malformed fix message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			continue
		}
		return fix, nil
	}
}

// Close releases the consumer's broker connections.
func (r *FixReader) Close() error {
	return r.reader.Close()
}

func parseFix(value []byte, brokerTime time.Time) (domain.Fix, error) {
	var msg fixMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return domain.Fix{}, fmt.Errorf("decode fix: %w", err)
	}

	p := domain.Point{Lat: msg.Lat, Lon: msg.Lon}
	if err := p.Validate(); err != nil {
		return domain.Fix{}, err
	}

	at := brokerTime
	if msg.At > 0 {
		at = time.UnixMilli(msg.At)
	}
	return domain.Fix{Point: p, At: at}, nil
}
