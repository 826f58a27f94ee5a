package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"relentless-jobs/internal/models"
)

// MessageReader abstracts kafka.Reader for consumers that commit explicitly.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader builds a group reader for topic.
func NewReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
	})
}

// DecodeRecord parses a results-topic payload. Messages without a jobLink are
// rejected since nothing downstream can key them.
func DecodeRecord(payload []byte) (models.RecordMessage, error) {
	var msg models.RecordMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.RecordMessage{}, fmt.Errorf("kafka: decode record: %w", err)
	}
	if msg.Record.JobLink == "" {
		return models.RecordMessage{}, errors.New("kafka: decode record: missing jobLink")
	}
	return msg, nil
}
