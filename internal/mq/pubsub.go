package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/kraman82351/Task-management/config"
	"google.golang.org/api/option"
)

const minAckDeadline = 10 * time.Second

// PubSubClient publishes and consumes the email queue on Google Cloud Pub/Sub.
// Each channel maps to a topic with one shared subscription, so several
// workers split the deliveries between them.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string
	maxOutstanding     int
	ackDeadline        time.Duration

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	p := newPubSubClient(cfg)
	p.client = client
	return p, nil
}

func newPubSubClient(cfg config.PubSubConfig) *PubSubClient {
	ackDeadline := cfg.AckDeadline
	if ackDeadline < minAckDeadline {
		ackDeadline = minAckDeadline
	}
	return &PubSubClient{
		subscriptionSuffix: cfg.SubscriptionSuffix,
		maxOutstanding:     cfg.MaxOutstanding,
		ackDeadline:        ackDeadline,
		topics:             make(map[string]*pubsub.Topic),
	}
}

// Publish sends a message to the named topic and waits for the server id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: publishAttributes(attrs)})
	return result.Get(ctx)
}

// Subscribe consumes messages from the named channel until ctx is done.
// Handler errors nack the message so Pub/Sub redelivers it.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings = p.receiveSettings()

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, fromPubSub(msg)); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached topic for name, creating it on first use.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: p.ackDeadline,
		})
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}

func (p *PubSubClient) receiveSettings() pubsub.ReceiveSettings {
	settings := pubsub.DefaultReceiveSettings
	if p.maxOutstanding > 0 {
		settings.MaxOutstandingMessages = p.maxOutstanding
		settings.NumGoroutines = 1
	}
	return settings
}

// publishAttributes copies attrs and fills in the content type the same way
// the RabbitMQ client does.
func publishAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		out[key] = value
	}
	if out[ContentTypeAttribute] == "" {
		out[ContentTypeAttribute] = DefaultContentType
	}
	return out
}

func fromPubSub(msg *pubsub.Message) Message {
	message := Message{
		ID:   msg.ID,
		Data: msg.Data,
	}
	if len(msg.Attributes) > 0 {
		message.Attributes = make(map[string]string, len(msg.Attributes))
		for key, value := range msg.Attributes {
			message.Attributes[key] = value
		}
	}
	return message
}
