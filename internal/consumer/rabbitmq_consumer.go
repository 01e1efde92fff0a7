package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-announcer/internal/models"
)

// Routing keys of the dataset lifecycle events
const (
	RoutingKeyUpdated   = "dataset.updated"
	RoutingKeyViewed    = "dataset.viewed"
	RoutingKeyAnnounced = "dataset.announced"
)

// MessageHandler processes one decoded dataset event
type MessageHandler func(ctx context.Context, routingKey string, event *models.DatasetChangedEvent) error

// RabbitMQConsumer handles RabbitMQ message consumption
type RabbitMQConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queueName    string
	exchangeName string
}

// NewRabbitMQConsumer creates a new RabbitMQ consumer and binds its queue to
// the given routing keys.
func NewRabbitMQConsumer(url, exchangeName, queueName string, routingKeys ...string) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	cleanup := func() {
		channel.Close()
		conn.Close()
	}

	// Declare the exchange (idempotent)
	if err := channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := channel.QueueBind(queueName, key, exchangeName, false, nil); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	// Process one message at a time so a session's hook and view events stay ordered
	if err := channel.Qos(1, 0, false); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	log.Info().
		Str("exchange", exchangeName).
		Str("queue", queueName).
		Strs("routing_keys", routingKeys).
		Msg("RabbitMQ consumer initialized")

	return &RabbitMQConsumer{
		conn:         conn,
		channel:      channel,
		queueName:    queueName,
		exchangeName: exchangeName,
	}, nil
}

// Consume starts consuming messages until ctx is cancelled
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack (we'll ack manually)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Info().
		Str("queue", c.queueName).
		Msg("Started consuming messages from RabbitMQ")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Consumer context cancelled, stopping...")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				log.Warn().Msg("Message channel closed")
				return fmt.Errorf("message channel closed")
			}

			err := processMessage(ctx, msg.RoutingKey, msg.Body, handler)
			switch {
			case err == nil:
				if err := msg.Ack(false); err != nil {
					log.Error().Err(err).Msg("Failed to ack message")
				}
			case isMalformed(err):
				log.Error().
					Err(err).
					Str("message_id", msg.MessageId).
					Msg("Dropping malformed message")
				if err := msg.Nack(false, false); err != nil {
					log.Error().Err(err).Msg("Failed to nack message")
				}
			default:
				log.Error().
					Err(err).
					Str("message_id", msg.MessageId).
					Msg("Failed to process message")
				// Reject and requeue, the failure may be temporary
				if err := msg.Nack(false, true); err != nil {
					log.Error().Err(err).Msg("Failed to nack message")
				}
			}
		}
	}
}

type malformedError struct{ err error }

func (e *malformedError) Error() string { return e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func isMalformed(err error) bool {
	_, ok := err.(*malformedError)
	return ok
}

// processMessage decodes a single message and hands it to the handler
func processMessage(ctx context.Context, routingKey string, body []byte, handler MessageHandler) error {
	log.Info().
		Str("routing_key", routingKey).
		Int("body_size", len(body)).
		Msg("Received message")

	var event models.DatasetChangedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &malformedError{fmt.Errorf("failed to unmarshal message: %w", err)}
	}
	if event.DatasetID == "" {
		return &malformedError{fmt.Errorf("message has no dataset_id")}
	}

	startTime := time.Now()
	if err := handler(ctx, routingKey, &event); err != nil {
		return fmt.Errorf("handler error: %w", err)
	}

	log.Info().
		Str("dataset_id", event.DatasetID).
		Str("routing_key", routingKey).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Successfully processed message")

	return nil
}

// PublishAnnounced publishes a composed announcement for the feed poster
func (c *RabbitMQConsumer) PublishAnnounced(ctx context.Context, event *models.DatasetAnnouncedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		RoutingKeyAnnounced,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    uuid.New().String(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info().
		Str("dataset_id", event.DatasetID).
		Str("session_id", event.SessionID).
		Msg("Published dataset.announced event")

	return nil
}

// Close closes the consumer connection
func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close channel")
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close connection")
			return err
		}
	}
	log.Info().Msg("RabbitMQ consumer closed")
	return nil
}
