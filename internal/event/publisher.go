package event

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

const DefaultExchange = "questionnaire.events"

type Publisher interface {
	PublishQuestionnaireEvent(event *QuestionnaireEvent) error
	Close() error
}

type EventPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	enabled  bool
}

// NewEventPublisher dials RabbitMQ and declares a durable topic exchange.
// An empty URI returns a publisher that only logs.
func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	if amqpURL == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{enabled: false}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &EventPublisher{conn: conn, channel: ch, exchange: exchange, enabled: true}, nil
}

func (p *EventPublisher) Enabled() bool { return p.enabled }

func (p *EventPublisher) PublishQuestionnaireEvent(event *QuestionnaireEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	return p.publish(event.EventType, event)
}

func (p *EventPublisher) publish(routingKey string, payload any) error {
	if !p.enabled {
		log.Printf("Event publishing is disabled, skipping event: %s", routingKey)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// the event type doubles as the routing key on the topic exchange
	err = p.channel.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("Published event: %s", routingKey)
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
