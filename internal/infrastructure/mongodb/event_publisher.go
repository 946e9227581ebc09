package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/cloudevents"
	"github.com/medflow/stock-service/pkg/kafka"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/outbox"
	outboxMongo "github.com/medflow/stock-service/pkg/outbox/mongodb"
)

// OutboxEventPublisher implements domain.EventPublisher by writing CloudEvents
// to the outbox collection. The background publisher drains it to Kafka, so
// delivery is at-least-once.
//
// Used by the counter-path flows (reservations, adjustments, the expiry
// janitor) where the stock mutation is a conditional update rather than a
// full aggregate save.
type OutboxEventPublisher struct {
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewOutboxEventPublisher creates an outbox-backed event publisher.
func NewOutboxEventPublisher(db *mongo.Database, eventFactory *cloudevents.EventFactory) *OutboxEventPublisher {
	return &OutboxEventPublisher{
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
}

// Publish converts a domain event to its CloudEvent form and stores it in the
// outbox.
func (p *OutboxEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	outboxEvent, err := p.toOutboxEvent(ctx, event)
	if err != nil {
		return err
	}
	if outboxEvent == nil {
		return nil
	}
	return p.outboxRepo.Save(ctx, outboxEvent)
}

// PublishAll converts and stores a batch of domain events.
func (p *OutboxEventPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		outboxEvent, err := p.toOutboxEvent(ctx, event)
		if err != nil {
			return err
		}
		if outboxEvent != nil {
			outboxEvents = append(outboxEvents, outboxEvent)
		}
	}
	if len(outboxEvents) == 0 {
		return nil
	}
	return p.outboxRepo.SaveAll(ctx, outboxEvents)
}

func (p *OutboxEventPublisher) toOutboxEvent(ctx context.Context, event domain.DomainEvent) (*outbox.OutboxEvent, error) {
	var (
		cloudEvent    *cloudevents.ClinicCloudEvent
		aggregateID   string
		aggregateType string
	)

	switch e := event.(type) {
	case *domain.StockAdjustedEvent:
		cloudEvent = p.eventFactory.CreateStockAdjustedEvent(ctx,
			e.RecordID, e.LocationID, string(e.Family), e.ProductID,
			e.OldQuantity, e.NewQuantity, e.Reason).
			WithActor(e.ActorID)
		aggregateID, aggregateType = e.RecordID, "StockRecord"

	case *domain.StockThresholdCrossedEvent:
		cloudEvent = p.eventFactory.CreateThresholdCrossedEvent(ctx, cloudevents.StockThresholdCrossedData{
			RecordID:       e.RecordID,
			LocationID:     e.LocationID,
			Family:         string(e.Family),
			ProductID:      e.ProductID,
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			CurrentStock:   e.CurrentStock,
			Reserved:       e.Reserved,
			ReorderPoint:   e.ReorderPoint,
		})
		aggregateID, aggregateType = e.RecordID, "StockRecord"

	case *domain.ReservationCreatedEvent:
		cloudEvent = p.eventFactory.CreateReservationEvent(ctx, cloudevents.ReservationCreated, cloudevents.ReservationData{
			ReservationID: e.ReservationID,
			StockRecordID: e.StockRecordID,
			LocationID:    e.LocationID,
			Family:        string(e.Family),
			ProductID:     e.ProductID,
			Quantity:      e.Quantity,
			ConsumerRef:   e.ConsumerRef,
			ExpiresAt:     e.ExpiresAt,
		})
		aggregateID, aggregateType = e.ReservationID, "Reservation"

	case *domain.ReservationReleasedEvent:
		cloudEvent = p.eventFactory.CreateReservationEvent(ctx, cloudevents.ReservationReleased, cloudevents.ReservationData{
			ReservationID: e.ReservationID,
			StockRecordID: e.StockRecordID,
			LocationID:    e.LocationID,
			Family:        string(e.Family),
			ProductID:     e.ProductID,
			Quantity:      e.Quantity,
		})
		aggregateID, aggregateType = e.ReservationID, "Reservation"

	case *domain.ReservationFulfilledEvent:
		cloudEvent = p.eventFactory.CreateReservationEvent(ctx, cloudevents.ReservationFulfilled, cloudevents.ReservationData{
			ReservationID: e.ReservationID,
			StockRecordID: e.StockRecordID,
			LocationID:    e.LocationID,
			Family:        string(e.Family),
			ProductID:     e.ProductID,
			Quantity:      e.Quantity,
		})
		aggregateID, aggregateType = e.ReservationID, "Reservation"

	case *domain.ReservationExpiredEvent:
		cloudEvent = p.eventFactory.CreateReservationEvent(ctx, cloudevents.ReservationExpired, cloudevents.ReservationData{
			ReservationID: e.ReservationID,
			StockRecordID: e.StockRecordID,
			LocationID:    e.LocationID,
			Family:        string(e.Family),
			ProductID:     e.ProductID,
			Quantity:      e.Quantity,
		})
		aggregateID, aggregateType = e.ReservationID, "Reservation"

	case *domain.TransferStatusChangedEvent:
		cloudEvent = p.eventFactory.CreateTransferStatusChangedEvent(ctx, cloudevents.TransferStatusChangedData{
			TransferID:     e.TransferID,
			SourceID:       e.SourceID,
			DestinationID:  e.DestinationID,
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
		}, e.ActorID)
		aggregateID, aggregateType = e.TransferID, "Transfer"

	default:
		// Unknown event types are dropped rather than failing the operation.
		return nil, nil
	}

	if correlationID := logging.CorrelationIDFromContext(ctx); correlationID != "" {
		cloudEvent.WithCorrelation(correlationID)
	}

	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(
		aggregateID,
		aggregateType,
		kafka.TopicForEventType(cloudEvent.Type),
		cloudEvent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}
	return outboxEvent, nil
}
