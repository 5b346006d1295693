// Package mq provides a broker-agnostic message queue used for outbound
// mail jobs. Two backends are supported: RabbitMQ and Google Cloud
// Pub/Sub, selected by configuration.
package mq

import (
	"context"
	"fmt"

	"github.com/idhub/authserver/config"
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// New constructs the backend named by cfg.MQ.Backend.
func New(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		return NewRabbitMQBackend(cfg.MQ.RabbitMQ)
	case "pubsub":
		return NewPubSubBackend(ctx, cfg.MQ.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}
