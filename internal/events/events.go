package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

// LedgerEvent is emitted once per committed ledger entry.
type LedgerEvent struct {
	EventID       string                 `json:"eventId"`
	WalletID      string                 `json:"walletId"`
	UserID        string                 `json:"userId"`
	TransactionID string                 `json:"transactionId"`
	Type          string                 `json:"type"`
	ChangeAmount  int                    `json:"changeAmount"`
	BalanceAfter  int                    `json:"balanceAfter"`
	Reason        string                 `json:"reason"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...LedgerEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher writes to topic keyed by wallet id, so entries of one
// wallet stay ordered within a partition.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  5,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		if e.EventID == "" {
			e.EventID = uuid.NewString()
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal ledger event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.WalletID),
			Value: b,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write ledger events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(_ context.Context, events ...LedgerEvent) error {
	for _, e := range events {
		logger.Debug("Ledger event dropped", "type", e.Type, "wallet_id", e.WalletID, "amount", e.ChangeAmount)
	}
	return nil
}

func (Noop) Close() error { return nil }

// New returns a queued Kafka publisher, or Noop when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		logger.Info("Kafka brokers not configured, ledger events disabled")
		return Noop{}
	}
	logger.Info("Ledger events enabled", "brokers", brokers, "topic", topic)
	return NewAsync(NewKafkaPublisher(brokers, topic), DefaultQueueSize, DefaultPublishTimeout)
}
