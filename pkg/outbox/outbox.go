package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/stock-service/pkg/cloudevents"
)

// OutboxEvent represents an event stored in the outbox for reliable
// delivery. Events are written in the same Mongo transaction as the state
// change that caused them, then drained to Kafka by the Publisher.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// DefaultMaxRetries bounds delivery attempts per event. An event that fails
// this many times stays in the collection for inspection but is no longer
// offered to the drain loop.
const DefaultMaxRetries = 10

// NewOutboxEventFromCloudEvent wraps a CloudEvent for storage, assigning the
// outbox row its own identity separate from the event's.
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.ClinicCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

// IsPublished reports whether the event already reached the broker.
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry reports whether the event is still eligible for delivery.
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// ToCloudEvent decodes the stored payload back into a CloudEvent.
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.ClinicCloudEvent, error) {
	var cloudEvent cloudevents.ClinicCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}
