package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/deskwise/deskwise/internal/config"
)

// KafkaSink publishes events to a Kafka topic, keyed by ticket id so all
// events for one ticket land on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink for the configured brokers and topic.
func NewKafkaSink(cfg config.KafkaSinkConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Send writes one event to the topic.
func (s *KafkaSink) Send(ctx context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.TicketID, 10)),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
