// AngelaMos | 2026
// events.go

// Package events publishes account lifecycle notifications. Publishing is
// best-effort: a broker outage never fails the request that caused the
// event.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/authflow/internal/config"
)

const (
	TypeUserRegistered     = "user.registered"
	TypeUserProfileUpdated = "user.profile_updated"
	TypeUserDeactivated    = "user.deactivated"

	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func NewEvent(eventType, userID string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

func NewNopPublisher() Publisher {
	return nopPublisher{}
}

// New picks the publisher named by cfg.Driver.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return NewNopPublisher(), nil
	case DriverRabbitMQ:
		pub, err := NewRabbitMQPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Emit publishes evt and logs instead of returning a failure.
func Emit(ctx context.Context, pub Publisher, logger *slog.Logger, evt Event) {
	if pub == nil {
		return
	}

	if err := pub.Publish(ctx, evt); err != nil {
		logger.WarnContext(ctx, "publish event failed",
			"type", evt.Type,
			"event_id", evt.ID,
			"user_id", evt.UserID,
			"error", err,
		)
	}
}
