package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"support-desk-backend/internal/env"

	"github.com/IBM/sarama"
)

// DomainEventsTopic carries every domain event; the routing key rides in
// the message key so consumers can filter per event type.
const DomainEventsTopic = "supportdesk.domain.events"

const (
	RoutingKeyCustomerRegistered = "customer.registered"
	RoutingKeyTicketCreated      = "ticket.created"
	RoutingKeySessionConverted   = "chat.session.converted"
)

// Publisher is the capability the services depend on. The Kafka producer
// implements it; tests substitute an in-memory recorder.
type Publisher interface {
	Publish(routingKey string, payload interface{}) error
}

type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer() (*Producer, error) {
	brokers := strings.Split(env.GetOrDefault(env.KafkaBrokers, "localhost:9092"), ",")

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("init kafka producer: %w", err)
	}

	return &Producer{producer: producer}, nil
}

func (p *Producer) Publish(routingKey string, payload interface{}) error {
	jsonValue, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: DomainEventsTopic,
		Key:   sarama.StringEncoder(routingKey),
		Value: sarama.ByteEncoder(jsonValue),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	log.Printf("event %s published to partition %d at offset %d", routingKey, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// NopPublisher discards events. Used where a server runs without a broker
// (local development) so service wiring stays unchanged.
type NopPublisher struct{}

func (NopPublisher) Publish(routingKey string, payload interface{}) error {
	return nil
}
