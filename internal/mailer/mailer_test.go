package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mrz1836/postmark"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraman82351/Task-management/config"
	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/mq"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func validMessage() Message {
	return Message{To: "ada@example.com", Subject: "Hi", HTML: "<p>hi</p>", Tag: TagVerification}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Message)
		wantErr bool
	}{
		{"valid", func(*Message) {}, false},
		{"missing recipient", func(m *Message) { m.To = " " }, true},
		{"malformed recipient", func(m *Message) { m.To = "not-an-email" }, true},
		{"missing subject", func(m *Message) { m.Subject = "" }, true},
		{"missing body", func(m *Message) { m.HTML = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := validMessage()
			tt.mutate(&msg)
			err := msg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	sender, err := NewSender(config.EmailConfig{Provider: "log"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	sender, err = NewSender(config.EmailConfig{Provider: "smtp", SMTPHost: "mail.local", SMTPPort: 25, From: "a@b.io"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)

	_, err = NewSender(config.EmailConfig{Provider: "smtp"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSender(config.EmailConfig{Provider: "postmark", From: "a@b.io"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSender(config.EmailConfig{Provider: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLogSenderKeepsLinksOutOfLogs(t *testing.T) {
	t.Parallel()

	msg, err := VerificationEmail("ada@example.com", "Ada", "http://localhost:3000/verify-email/s3cr3t-token", 24*time.Hour)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	require.NoError(t, NewLogSender(logger, false).Send(context.Background(), msg))
	assert.Contains(t, buf.String(), "ada@example.com")
	assert.NotContains(t, buf.String(), "s3cr3t-token")

	sender, err := NewSender(config.EmailConfig{Provider: "log"}, logger)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, sender.Send(context.Background(), msg))
	assert.NotContains(t, buf.String(), "s3cr3t-token")

	buf.Reset()
	require.NoError(t, NewLogSender(logger, true).Send(context.Background(), msg))
	assert.Contains(t, buf.String(), "s3cr3t-token")
}

func TestTemplatesEmbedLink(t *testing.T) {
	t.Parallel()

	msg, err := VerificationEmail("ada@example.com", "Ada", "http://localhost:3000/verify-email/abc123", 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, msg.Validate())
	assert.Equal(t, TagVerification, msg.Tag)
	assert.Contains(t, msg.HTML, "http://localhost:3000/verify-email/abc123")
	assert.Contains(t, msg.HTML, "1 day")
	assert.Contains(t, msg.Text, "http://localhost:3000/verify-email/abc123")

	msg, err = PasswordResetEmail("ada@example.com", "<Ada>", "http://localhost:3000/reset-password/xyz", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TagPasswordReset, msg.Tag)
	assert.Contains(t, msg.HTML, "http://localhost:3000/reset-password/xyz")
	assert.Contains(t, msg.HTML, "&lt;Ada&gt;")
	assert.Contains(t, msg.HTML, "1 hour")
}

func TestHumanDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2 days", humanDuration(48*time.Hour))
	assert.Equal(t, "3 hours", humanDuration(3*time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
}

func TestDispatchInline(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	m := metrics.New()
	d := NewDispatcher(sender, nil, "emails", m, nil)

	require.NoError(t, d.Dispatch(context.Background(), validMessage()))
	assert.Equal(t, []Message{validMessage()}, sender.messages())
}

func TestDispatchInlineFailure(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{err: ErrFailedToSend}
	d := NewDispatcher(sender, nil, "emails", nil, nil)

	assert.ErrorIs(t, d.Dispatch(context.Background(), validMessage()), ErrFailedToSend)
	assert.ErrorIs(t, d.Dispatch(context.Background(), Message{}), ErrInvalidMessage)
}

type capturePublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (p *capturePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.channel, p.data, p.attrs = channel, data, attrs
	return "m-1", p.err
}

func TestDispatchPublishesToQueue(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	pub := &capturePublisher{}
	d := NewDispatcher(sender, pub, "emails", nil, nil)

	require.NoError(t, d.Dispatch(context.Background(), validMessage()))
	assert.Empty(t, sender.messages())
	assert.Equal(t, "emails", pub.channel)
	assert.Equal(t, TagVerification, pub.attrs["tag"])
	assert.Equal(t, "application/json", pub.attrs[mq.ContentTypeAttribute])

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, validMessage(), decoded)

	pub.err = errors.New("broker down")
	assert.Error(t, d.Dispatch(context.Background(), validMessage()))
}

func TestWorkerHandle(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	w := NewWorker(nil, "emails", sender, nil, nil)
	ctx := context.Background()

	data, err := json.Marshal(validMessage())
	require.NoError(t, err)
	require.NoError(t, w.Handle(ctx, mq.Message{ID: "1", Data: data}))
	assert.Len(t, sender.messages(), 1)

	assert.NoError(t, w.Handle(ctx, mq.Message{ID: "2", Data: []byte("{oops")}))
	assert.NoError(t, w.Handle(ctx, mq.Message{ID: "3", Data: []byte(`{"to":"x"}`)}))
	assert.Len(t, sender.messages(), 1)

	sender.err = ErrFailedToSend
	assert.ErrorIs(t, w.Handle(ctx, mq.Message{ID: "4", Data: data}), ErrFailedToSend)
}

func TestDispatcherAndWorkerOverMemoryQueue(t *testing.T) {
	t.Parallel()

	queue := mq.NewMemory()
	defer queue.Close()

	m := metrics.New()
	sender := &recordingSender{}
	d := NewDispatcher(nil, queue, "emails", m, nil)
	w := NewWorker(queue, "emails", sender, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, d.Dispatch(ctx, validMessage()))
	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	series, err := testutil.GatherAndCount(m.Registry(), "taskmanager_emails_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "queued and sent")
}

type fakePostmark struct {
	got  postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.got = email
	return f.resp, f.err
}

func TestPostmarkSender(t *testing.T) {
	t.Parallel()

	fake := &fakePostmark{}
	s := &PostmarkSender{client: fake, from: "no-reply@x.io", replyTo: "help@x.io"}

	require.NoError(t, s.Send(context.Background(), validMessage()))
	assert.Equal(t, "no-reply@x.io", fake.got.From)
	assert.Equal(t, "help@x.io", fake.got.ReplyTo)
	assert.Equal(t, "ada@example.com", fake.got.To)
	assert.Equal(t, TagVerification, fake.got.Tag)

	fake.resp = postmark.EmailResponse{ErrorCode: 300, Message: "Invalid email request"}
	assert.ErrorIs(t, s.Send(context.Background(), validMessage()), ErrFailedToSend)
}
