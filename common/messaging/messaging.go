// Package messaging provides abstractions for message broker communication.
// Services publish and consume through these interfaces without being
// coupled to a specific broker implementation.
package messaging

import (
	"context"
	"errors"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs carried as headers.
	Metadata map[string]string

	// Timestamp is when the message was published or received.
	Timestamp time.Time
}

// MessageHandler processes a received message. Returning an error asks the
// broker to redeliver the message later.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages durably: PublishMsg returns only after the
// broker has acknowledged persistence.
type Publisher interface {
	PublishMsg(ctx context.Context, msg *Message) error

	// IsConnected returns true if the publisher has a live broker connection.
	IsConnected() bool

	Close() error
}

// Consumer delivers messages from a durable consumer to a handler until the
// returned stop function is called.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) (stop func(), err error)
}

// ErrPoison marks a message that can never be processed. Consumers
// terminate such messages instead of redelivering them.
var ErrPoison = errors.New("poison message")

// IsPoison reports whether err wraps ErrPoison.
func IsPoison(err error) bool {
	return errors.Is(err, ErrPoison)
}
