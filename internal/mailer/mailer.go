// Package mailer renders and delivers transactional email. Delivery goes
// through a Sender directly, or through the message queue when one is
// configured and a Worker drains it.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/kraman82351/Task-management/config"
)

var (
	ErrFailedToSend   = errors.New("mailer: failed to send email")
	ErrInvalidConfig  = errors.New("mailer: invalid config")
	ErrInvalidMessage = errors.New("mailer: invalid message")
)

// Message is one rendered email. It is also the queue payload.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrInvalidMessage, m.To, err)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a message to the recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "log":
		return NewLogSender(logger, cfg.LogBodies), nil
	case "smtp":
		return NewSMTPSender(cfg)
	case "postmark":
		return NewPostmarkSender(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// LogSender writes messages to the log instead of delivering them. Bodies
// hold live one-time links and are logged at debug level only when
// logBodies is set.
type LogSender struct {
	logger    *slog.Logger
	logBodies bool
}

func NewLogSender(logger *slog.Logger, logBodies bool) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger, logBodies: logBodies}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	attrs := []slog.Attr{
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "email not delivered, log provider", attrs...)
	if s.logBodies {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "email body", append(attrs, slog.String("text", msg.Text))...)
	}
	return nil
}
