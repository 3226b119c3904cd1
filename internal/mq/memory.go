package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

const (
	memoryQueueSize        = 128
	memoryMaxRedeliveries  = 3
	memoryDeliveryAttempts = "x-delivery-attempts"
)

var ErrClosed = errors.New("mq: backend closed")

// Memory is an in-process Backend. Failed messages are redelivered a few
// times before being dropped.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
	seq    atomic.Uint64
	done   chan struct{}
	once   sync.Once
}

func NewMemory() *Memory {
	return &Memory{
		queues: make(map[string]chan Message),
		done:   make(chan struct{}),
	}
}

func (m *Memory) queue(channel string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		m.queues[channel] = q
	}
	return q
}

func (m *Memory) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("memory channel is required")
	}

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	msg := Message{
		ID:         strconv.FormatUint(m.seq.Add(1), 10),
		Data:       append([]byte(nil), data...),
		Attributes: copied,
	}

	select {
	case <-m.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case m.queue(channel) <- msg:
		return msg.ID, nil
	}
}

// Subscribe blocks until ctx is cancelled or the backend is closed.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("memory channel is required")
	}

	q := m.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				m.redeliver(q, msg)
			}
		}
	}
}

func (m *Memory) redeliver(q chan Message, msg Message) {
	attempts, _ := strconv.Atoi(msg.Attributes[memoryDeliveryAttempts])
	attempts++
	if attempts >= memoryMaxRedeliveries {
		return
	}
	msg.Attributes[memoryDeliveryAttempts] = strconv.Itoa(attempts)
	select {
	case q <- msg:
	default:
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
