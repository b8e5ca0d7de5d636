package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/hejijunhao/vitals/internal/output"
)

// DefaultTopic receives predictions when no topic is configured.
const DefaultTopic = "vitals.predictions"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Output publishes one JSON message per prediction, keyed by patient ID so a
// patient's rows land on the same partition.
type Output struct {
	writer messageWriter
}

// New creates a synchronous producer for topic on the given brokers.
func New(brokers []string, topic string) *Output {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Output{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}}
}

// Write publishes the batch in a single WriteMessages call.
func (o *Output) Write(ctx context.Context, batch output.Batch) error {
	if len(batch.Predictions) == 0 {
		return nil
	}

	records := output.Records(batch)
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("kafka output: marshal: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.PatientID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(r.RunID)},
			},
		})
	}

	if err := o.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka output: %w", err)
	}
	return nil
}

// Close flushes and releases the writer.
func (o *Output) Close() error {
	return o.writer.Close()
}
