package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
)

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
	MaxBytes int64
	MaxMsgs  int64

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType

	// Duplicates is the server-side deduplication window. Zero keeps the
	// server default; sentinel never sets Nats-Msg-Id so nothing is deduplicated.
	Duplicates time.Duration
}

// ConsumerConfig defines a durable JetStream consumer.
type ConsumerConfig struct {
	Name          string
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver bounds delivery attempts; -1 means unlimited.
	MaxDeliver int

	MaxAckPending int

	// NakDelay is the redelivery delay applied when a handler fails.
	NakDelay time.Duration
}

// SecurityEventsStream captures accepted security events until the storage
// consumer has acknowledged them.
var SecurityEventsStream = StreamConfig{
	Name:      messaging.StreamSecurityEvents,
	Subjects:  []string{messaging.SubjectSecurityEvents},
	MaxAge:    7 * 24 * time.Hour,
	MaxBytes:  1024 * 1024 * 1024,
	MaxMsgs:   10000000,
	Retention: jetstream.WorkQueuePolicy,
	Storage:   jetstream.FileStorage,
}

// DeadLetterStream parks undecodable security events for inspection.
var DeadLetterStream = StreamConfig{
	Name:      messaging.StreamDeadLetter,
	Subjects:  []string{messaging.SubjectDeadLetterPrefix + ">"},
	MaxAge:    30 * 24 * time.Hour,
	MaxBytes:  256 * 1024 * 1024,
	Retention: jetstream.LimitsPolicy,
	Storage:   jetstream.FileStorage,
}

// StorageConsumer is the durable consumer the storage writers share.
var StorageConsumer = ConsumerConfig{
	Name:          messaging.ConsumerStorage,
	FilterSubject: messaging.SubjectSecurityEvents,
	AckWait:       30 * time.Second,
	MaxDeliver:    -1,
	MaxAckPending: 1000,
	NakDelay:      5 * time.Second,
}

// JetStreamClient extends Client with JetStream persistence capabilities.
// It implements messaging.Publisher.
type JetStreamClient struct {
	*Client
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewJetStreamClient dials NATS and creates a JetStream context.
func NewJetStreamClient(cfg Config, logger *slog.Logger) (*JetStreamClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js, logger: logger}, nil
}

// EnsureStream creates or updates a stream.
func (c *JetStreamClient) EnsureStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Name,
		Subjects:   cfg.Subjects,
		MaxAge:     cfg.MaxAge,
		MaxBytes:   cfg.MaxBytes,
		MaxMsgs:    cfg.MaxMsgs,
		Retention:  cfg.Retention,
		Storage:    cfg.Storage,
		Duplicates: cfg.Duplicates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// PublishMsg publishes msg and waits for the stream acknowledgment.
func (c *JetStreamClient) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	natsMsg := &nats.Msg{
		Subject: msg.Subject,
		Data:    msg.Data,
	}
	if len(msg.Metadata) > 0 {
		natsMsg.Header = make(nats.Header, len(msg.Metadata))
		for k, v := range msg.Metadata {
			natsMsg.Header.Set(k, v)
		}
	}

	if _, err := c.js.PublishMsg(ctx, natsMsg); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	return nil
}

// Ping verifies that JetStream answers on this connection.
func (c *JetStreamClient) Ping(ctx context.Context) error {
	if _, err := c.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("jetstream account info: %w", err)
	}
	return nil
}

// DurableConsumer binds a stream and durable consumer pair to a client.
// It implements messaging.Consumer.
type DurableConsumer struct {
	client   *JetStreamClient
	stream   StreamConfig
	consumer ConsumerConfig
}

// NewDurableConsumer ensures the stream and the durable consumer exist.
func NewDurableConsumer(ctx context.Context, client *JetStreamClient, stream StreamConfig, consumer ConsumerConfig) (*DurableConsumer, error) {
	s, err := client.EnsureStream(ctx, stream)
	if err != nil {
		return nil, err
	}

	_, err = s.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumer.Name,
		Durable:       consumer.Name,
		FilterSubject: consumer.FilterSubject,
		AckWait:       consumer.AckWait,
		MaxDeliver:    consumer.MaxDeliver,
		MaxAckPending: consumer.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", consumer.Name, err)
	}

	return &DurableConsumer{client: client, stream: stream, consumer: consumer}, nil
}

// Consume delivers messages to handler. A nil handler result acks the
// message; an error NAKs it with the configured delay. Messages whose
// handler returns messaging.ErrPoison are terminated instead.
func (d *DurableConsumer) Consume(ctx context.Context, handler messaging.MessageHandler) (func(), error) {
	cons, err := d.client.js.Consumer(ctx, d.stream.Name, d.consumer.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", d.consumer.Name, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		m := &messaging.Message{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
		}
		if meta, err := msg.Metadata(); err == nil {
			m.Timestamp = meta.Timestamp
		}
		if headers := msg.Headers(); len(headers) > 0 {
			m.Metadata = make(map[string]string, len(headers))
			for k := range headers {
				m.Metadata[k] = headers.Get(k)
			}
		}

		if err := handler(consumeCtx, m); err != nil {
			if messaging.IsPoison(err) {
				_ = msg.Term()
				return
			}
			_ = msg.NakWithDelay(d.consumer.NakDelay)
			return
		}
		if err := msg.Ack(); err != nil {
			d.client.logger.Warn("failed to ack message", slog.String("subject", m.Subject), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cc.Stop()
	}, nil
}
