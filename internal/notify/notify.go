// Package notify delivers order confirmations.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
)

const EventOrderConfirmed = "order.confirmed"

type Confirmation struct {
	OrderID       string             `json:"orderId"`
	SessionID     string             `json:"sessionId"`
	CustomerEmail string             `json:"customerEmail"`
	CustomerName  string             `json:"customerName"`
	Items         []domain.OrderLine `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Shipping      decimal.Decimal    `json:"shipping"`
	VAT           decimal.Decimal    `json:"vat"`
	Total         decimal.Decimal    `json:"total"`
	CompletedAt   time.Time          `json:"completedAt"`
}

// FromView builds the confirmation payload for a completed order.
func FromView(v domain.OrderView) Confirmation {
	c := Confirmation{
		OrderID:       v.ID,
		SessionID:     v.StripeSessionID,
		CustomerEmail: v.CustomerEmail,
		CustomerName:  v.CustomerName,
		Items:         v.CartItems,
		Subtotal:      v.Subtotal,
		Shipping:      v.Shipping,
		VAT:           v.VAT,
		Total:         v.Total,
	}
	if v.CompletedAt != nil {
		c.CompletedAt = *v.CompletedAt
	}
	return c
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, c Confirmation) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes confirmations keyed by order id so a consumer sees
// them in order per order.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	return &KafkaNotifier{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (k *KafkaNotifier) OrderConfirmed(ctx context.Context, c Confirmation) error {
	msg, err := confirmationMessage(c)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", c.OrderID, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }

func confirmationMessage(c Confirmation) (kafka.Message, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal confirmation: %w", err)
	}
	return kafka.Message{
		Key:   []byte(c.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderConfirmed)},
		},
	}, nil
}

// LogNotifier writes confirmations to the application log.
type LogNotifier struct{}

func (LogNotifier) OrderConfirmed(_ context.Context, c Confirmation) error {
	applog.Event("info", EventOrderConfirmed, nil, map[string]any{
		"order_id": c.OrderID,
		"email":    c.CustomerEmail,
		"items":    len(c.Items),
		"total":    c.Total.StringFixed(2),
	})
	return nil
}
