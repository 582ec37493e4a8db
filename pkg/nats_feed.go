package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ChangeEvent is one backing-store change notification awaiting acknowledgement.
type ChangeEvent interface {
	Data() []byte
	Ack() error
}

// NATSChangeFeedConfig configures a NATSChangeFeed instance.
type NATSChangeFeedConfig struct {
	URL          string        // NATS server URL
	StreamName   string        // JetStream stream name (e.g., "KDS_CHANGES")
	Topic        string        // Subject the POS bridge publishes change signals to
	ConsumerName string        // Durable consumer name for this service
	MaxWait      time.Duration // Upper bound for a single WaitForChange call
	MaxAge       time.Duration // How long to retain undelivered change signals
}

// NATSChangeFeed exposes a backing-store change channel over a JetStream
// durable pull consumer. WaitForChange blocks for at most MaxWait and
// returns (nil, nil) when no change arrived in that window.
type NATSChangeFeed struct {
	cfg      NATSChangeFeedConfig
	conn     *nats.Conn
	consumer jetstream.Consumer
}

func NewNATSChangeFeed(cfg NATSChangeFeedConfig) *NATSChangeFeed {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	return &NATSChangeFeed{cfg: cfg}
}

// Connect dials NATS and ensures the stream and durable consumer exist.
// It is safe to call again after a failure; any half-open connection is
// discarded first.
func (f *NATSChangeFeed) Connect(ctx context.Context) error {
	f.Close()

	conn, err := nats.Connect(f.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     f.cfg.StreamName,
		Subjects: []string{f.cfg.Topic},
		MaxAge:   f.cfg.MaxAge,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create/update stream %s: %w", f.cfg.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          f.cfg.ConsumerName,
		Durable:       f.cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		FilterSubject: f.cfg.Topic,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create/update consumer %s: %w", f.cfg.ConsumerName, err)
	}

	f.conn = conn
	f.consumer = consumer
	return nil
}

// WaitForChange blocks until a change notification arrives or MaxWait
// elapses. A timeout is not an error: the caller re-enters the wait.
func (f *NATSChangeFeed) WaitForChange(ctx context.Context) (ChangeEvent, error) {
	if f.consumer == nil {
		return nil, fmt.Errorf("change feed is not connected")
	}

	batch, err := f.consumer.Fetch(1, jetstream.FetchMaxWait(f.cfg.MaxWait))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch change notification: %w", err)
	}

	for msg := range batch.Messages() {
		return &natsChangeEvent{msg: msg}, nil
	}
	if err := batch.Error(); err != nil {
		return nil, fmt.Errorf("change notification batch failed: %w", err)
	}
	return nil, nil
}

func (f *NATSChangeFeed) Close() error {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
		f.consumer = nil
	}
	return nil
}

type natsChangeEvent struct {
	msg jetstream.Msg
}

func (e *natsChangeEvent) Data() []byte {
	return e.msg.Data()
}

func (e *natsChangeEvent) Ack() error {
	return e.msg.Ack()
}
