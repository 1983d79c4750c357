package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"

	"vpsBack/internal/models"
)

const (
	DefaultTopic        = "successful_payments"
	EventPaymentSettled = "payment_settled"
)

// KafkaPublisher emits settlement events. Delivery reports are drained by Run.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("events: new producer: %w", err)
	}
	log.WithField("topic", topic).Info("Kafka publisher ready")
	return &KafkaPublisher{producer: p, topic: topic}, nil
}

func encodeSettled(ev models.PaymentSettled) (*kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &kafka.Message{
		Key:     []byte(ev.TradeID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventPaymentSettled)}},
	}, nil
}

func (p *KafkaPublisher) PublishSettled(ctx context.Context, ev models.PaymentSettled) error {
	msg, err := encodeSettled(ev)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	msg.TopicPartition = kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.Produce(msg, nil)
}

// Run logs delivery failures until ctx is done.
func (p *KafkaPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-p.producer.Events():
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					log.WithError(e.TopicPartition.Error).WithField("trade_no", string(e.Key)).Error("Settlement event not delivered")
				}
			case kafka.Error:
				log.WithError(e).Error("Kafka error")
				if e.IsFatal() {
					return e
				}
			}
		}
	}
}

func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
