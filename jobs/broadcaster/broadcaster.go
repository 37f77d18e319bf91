// Package broadcaster replays committed settlement events from the durable
// outbox to Kafka. Events are published at-least-once: a record is marked
// SENT before publish and ACKED only after the broker confirms, so a crash
// between the two replays the event on the next pass.
package broadcaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// OutboxSource is the slice of the durable store the broadcaster needs.
type OutboxSource interface {
	ScanPending(fn func(seq uint64, payload []byte) error) error
	MarkSent(seq uint64) error
	MarkAcked(seq uint64) error
}

// Broadcaster publishes pending outbox events to a Kafka topic.
type Broadcaster struct {
	outbox   OutboxSource
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

// New connects a synchronous producer requiring acks from all in-sync
// replicas.
func New(outbox OutboxSource, brokers []string, topic string, interval time.Duration) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// Start launches the replay loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	slog.Info("📣 [Broadcaster] Started", "topic", b.topic, "interval", b.interval)

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

// replayOnce publishes every pending event once, leaving failed publishes
// pending for the next pass.
func (b *Broadcaster) replayOnce() {
	err := b.outbox.ScanPending(func(seq uint64, payload []byte) error {
		if err := b.outbox.MarkSent(seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("%d", seq)),
			Value: sarama.ByteEncoder(payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			slog.Warn("📣 [Broadcaster] Publish failed, will retry", "seq", seq, "err", err)
			return nil // retry on the next pass
		}

		return b.outbox.MarkAcked(seq)
	})
	if err != nil {
		slog.Warn("📣 [Broadcaster] Outbox scan failed", "err", err)
	}
}

// Close shuts down the producer.
func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
