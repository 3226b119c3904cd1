package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraman82351/Task-management/config"
)

const (
	// ContentTypeAttribute names the payload media type. RabbitMQ carries it
	// as the AMQP content type, Pub/Sub as a message attribute.
	ContentTypeAttribute = "content-type"
	DefaultContentType   = "application/octet-stream"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Publisher is the producing half of a Backend.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the consuming half of a Backend.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publisher
	Subscriber
	Close() error
}

// Open connects the backend selected by cfg.Driver. It returns a nil
// Backend for the "none" driver.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "rabbitmq":
		return NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("mq: unknown driver %q", cfg.Driver)
	}
}
