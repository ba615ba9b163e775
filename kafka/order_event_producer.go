package kafka

import (
	"context"
	"encoding/json"
	"log"

	"ticketshop/models"

	"github.com/segmentio/kafka-go"
)

// ProducerAPI is the surface the order service needs from the producer.
type ProducerAPI interface {
	PublishOrderPaid(event models.OrderPaidEvent) error
}

type OrderEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewOrderEventProducer(brokers []string, topic string) *OrderEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("[TicketShop][KafkaProducer] initialized topic=%s brokers=%v", topic, brokers)
	return &OrderEventProducer{writer: w, topic: topic}
}

// PublishOrderPaid sends an order_paid event keyed by order id.
func (p *OrderEventProducer) PublishOrderPaid(event models.OrderPaidEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}

	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		log.Printf("[TicketShop] ❌ Failed to send order event: %v", err)
		return err
	}

	log.Printf("[TicketShop] 📤 Sent OrderPaidEvent: order=%s provider=%s", event.OrderID, event.Provider)
	return nil
}

func (p *OrderEventProducer) Close() {
	_ = p.writer.Close()
	log.Println("[TicketShop] 🔌 Kafka producer closed")
}
