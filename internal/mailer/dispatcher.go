package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/mq"
)

const attrTag = "tag"

// Dispatcher hands messages to the queue when a publisher is set, and to
// the sender otherwise.
type Dispatcher struct {
	sender    Sender
	publisher mq.Publisher
	channel   string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewDispatcher(sender Sender, publisher mq.Publisher, channel string, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:    sender,
		publisher: publisher,
		channel:   channel,
		metrics:   m,
		logger:    logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if d.publisher == nil {
		if err := d.sender.Send(ctx, msg); err != nil {
			d.metrics.ObserveEmail(msg.Tag, "failed")
			return err
		}
		d.metrics.ObserveEmail(msg.Tag, "sent")
		d.logger.InfoContext(ctx, "email sent", slog.String("tag", msg.Tag))
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	id, err := d.publisher.Publish(ctx, d.channel, data, map[string]string{
		attrTag:                 msg.Tag,
		mq.ContentTypeAttribute: "application/json",
	})
	if err != nil {
		d.metrics.ObserveEmail(msg.Tag, "failed")
		return fmt.Errorf("publish email: %w", err)
	}
	d.metrics.ObserveEmail(msg.Tag, "queued")
	d.logger.InfoContext(ctx, "email queued",
		slog.String("tag", msg.Tag),
		slog.String("message_id", id),
		slog.String("channel", d.channel),
	)
	return nil
}
