package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/TKamote/tbsnews/internal/models"
)

// ClaimPublisher announces freshly persisted claims on a Kafka topic
// so downstream consumers (feed cache warmers, alert bots) can react
// without polling the store. Optional: a nil publisher is a no-op.
type ClaimPublisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

type claimEvent struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Score int      `json:"bullshitScore"`
	Tags  []string `json:"tags"`
}

// NewClaimPublisher builds a publisher. Returns nil when no topic is
// configured.
func NewClaimPublisher(brokers []string, topic string, log *slog.Logger) *ClaimPublisher {
	if topic == "" || len(brokers) == 0 {
		return nil
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 3,
	})

	return &ClaimPublisher{writer: writer, log: log}
}

// Publish emits one claim event keyed by URL.
func (p *ClaimPublisher) Publish(ctx context.Context, claim models.Claim) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(claimEvent{
		ID:    claim.ID,
		Title: claim.Title,
		URL:   claim.URL,
		Score: claim.Score,
		Tags:  claim.Tags,
	})
	if err != nil {
		return fmt.Errorf("marshal claim event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(claim.URL),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish claim event: %w", err)
	}

	return nil
}

// Close releases the underlying writer.
func (p *ClaimPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
