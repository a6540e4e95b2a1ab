package notifier

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/segmentio/kafka-go"

	"github.com/docstack-tech/docstack/core/logger"
)

// KafkaNotifier publishes one message per notification to a kafka topic.
// Messages are keyed by resource and id so that updates to the same document
// stay in one partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier publishing to the given brokers and
// topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	logger.Default().Debugln("kafka notifications enabled, topic:", topic)
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Notify publishes the notification.
func (n *KafkaNotifier) Notify(ctx context.Context, notification Notification) error {
	value, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.Resource + "/" + notification.ResourceID),
		Value: value,
	})
}

// Close closes the underlying kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
