package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"relentless-jobs/internal/models"
)

const defaultBatchSize = 100

// MessageWriter abstracts kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes run output to one topic.
type Producer struct {
	writer    MessageWriter
	batchSize int
	now       func() time.Time
}

// NewProducer creates a Kafka producer for the given broker and topic.
func NewProducer(broker, topic string) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	})
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer MessageWriter) *Producer {
	return &Producer{writer: writer, batchSize: defaultBatchSize, now: time.Now}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// WriteRecords publishes one message per record keyed by jobLink, so every
// version of a listing lands on the same partition.
func (p *Producer) WriteRecords(ctx context.Context, runID string, records []models.JobRecord) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		payload, err := models.NewRecordMessage(runID, r)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.JobLink),
			Value: payload,
			Time:  p.now().UTC(),
		})
	}
	return p.write(ctx, msgs)
}

// WriteFailures publishes failed fetches to a dead-letter topic keyed by URL.
func (p *Producer) WriteFailures(ctx context.Context, failures []models.CrawlFailure) error {
	msgs := make([]kafka.Message, 0, len(failures))
	for _, f := range failures {
		payload, err := json.Marshal(f)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(f.URL),
			Value: payload,
			Time:  f.FailedAt,
		})
	}
	return p.write(ctx, msgs)
}

func (p *Producer) write(ctx context.Context, msgs []kafka.Message) error {
	for start := 0; start < len(msgs); start += p.batchSize {
		end := start + p.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := p.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("kafka: write messages %d-%d: %w", start, end, err)
		}
	}
	return nil
}
