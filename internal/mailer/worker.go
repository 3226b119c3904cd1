package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/mq"
)

// Worker drains the email queue into a Sender.
type Worker struct {
	subscriber mq.Subscriber
	channel    string
	sender     Sender
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewWorker(subscriber mq.Subscriber, channel string, sender Sender, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		subscriber: subscriber,
		channel:    channel,
		sender:     sender,
		metrics:    m,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "email worker started", slog.String("channel", w.channel))
	err := w.subscriber.Subscribe(ctx, w.channel, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle delivers one queued message. Undecodable or invalid payloads are
// acknowledged and dropped. Send failures are returned for the broker to retry.
func (w *Worker) Handle(ctx context.Context, delivery mq.Message) error {
	var msg Message
	if err := json.Unmarshal(delivery.Data, &msg); err != nil {
		w.logger.ErrorContext(ctx, "drop undecodable email", slog.String("message_id", delivery.ID), slog.Any("error", err))
		return nil
	}
	if err := msg.Validate(); err != nil {
		w.logger.ErrorContext(ctx, "drop invalid email", slog.String("message_id", delivery.ID), slog.Any("error", err))
		return nil
	}

	if err := w.sender.Send(ctx, msg); err != nil {
		w.metrics.ObserveEmail(msg.Tag, "failed")
		w.logger.WarnContext(ctx, "email delivery failed",
			slog.String("message_id", delivery.ID),
			slog.String("tag", msg.Tag),
			slog.Any("error", err),
		)
		return err
	}
	w.metrics.ObserveEmail(msg.Tag, "sent")
	w.logger.InfoContext(ctx, "email delivered", slog.String("message_id", delivery.ID), slog.String("tag", msg.Tag))
	return nil
}
