// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingPaid          = "booking.paid"
	DeploymentFinished   = "deployment.finished"
	SubscriptionUpdated  = "subscription.updated"
	TeamMemberInvited    = "team.member_invited"
)

// Event is the envelope written to the topic
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	BusinessID uint        `json:"business_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured, a log-only one otherwise
func New(cfg config.EventsConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// NewEvent stamps an envelope
func NewEvent(eventType string, businessID uint, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BusinessID: businessID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Emit publishes and only logs failures. Events never fail the request that raised them.
func Emit(ctx context.Context, p Publisher, eventType string, businessID uint, data interface{}) {
	if p == nil {
		return
	}
	e := NewEvent(eventType, businessID, data)
	if err := p.Publish(ctx, e); err != nil {
		logger.Ctx(ctx).Warn("Failed to publish event",
			zap.String("type", eventType), zap.Uint("business_id", businessID), zap.Error(err))
	}
}

// KafkaPublisher writes events keyed by business so a tenant's events stay ordered
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a synchronous writer for the configured topic
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := toMessage(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending writes
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.BusinessID), 10)),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	}, nil
}

// LogPublisher logs events instead of sending them
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logger.Ctx(ctx).Info("Event",
		zap.String("type", e.Type),
		zap.String("event_id", e.ID),
		zap.Uint("business_id", e.BusinessID))
	return nil
}

func (LogPublisher) Close() error { return nil }
