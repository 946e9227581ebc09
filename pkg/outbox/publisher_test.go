package outbox

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/stock-service/pkg/cloudevents"
	"github.com/medflow/stock-service/pkg/logging"
	"github.com/medflow/stock-service/pkg/metrics"
	pkgtesting "github.com/medflow/stock-service/pkg/testing"
)

type memoryOutboxRepo struct {
	mu     sync.Mutex
	events map[string]*OutboxEvent
	order  []string
}

func newMemoryOutboxRepo() *memoryOutboxRepo {
	return &memoryOutboxRepo{events: make(map[string]*OutboxEvent)}
}

func (r *memoryOutboxRepo) Save(ctx context.Context, event *OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.events[event.ID] = &clone
	r.order = append(r.order, event.ID)
	return nil
}

func (r *memoryOutboxRepo) SaveAll(ctx context.Context, events []*OutboxEvent) error {
	for _, event := range events {
		if err := r.Save(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryOutboxRepo) FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*OutboxEvent
	for _, id := range r.order {
		event := r.events[id]
		if event.PublishedAt == nil && event.RetryCount < event.MaxRetries {
			clone := *event
			result = append(result, &clone)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *memoryOutboxRepo) MarkPublished(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return errors.New("event not found")
	}
	now := time.Now()
	event.PublishedAt = &now
	return nil
}

func (r *memoryOutboxRepo) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return errors.New("event not found")
	}
	event.RetryCount++
	event.LastError = errorMsg
	return nil
}

func (r *memoryOutboxRepo) DeletePublished(ctx context.Context, olderThan time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().Add(-olderThan)
	kept := r.order[:0]
	for _, id := range r.order {
		event := r.events[id]
		if event.PublishedAt != nil && event.PublishedAt.Before(threshold) {
			delete(r.events, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return nil
}

func (r *memoryOutboxRepo) GetByID(ctx context.Context, eventID string) (*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return nil, errors.New("event not found")
	}
	clone := *event
	return &clone, nil
}

func (r *memoryOutboxRepo) publishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.PublishedAt != nil {
			count++
		}
	}
	return count
}

func (r *memoryOutboxRepo) retryCount(eventID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[eventID].RetryCount
}

type capturingProducer struct {
	mu     sync.Mutex
	topics []string
	types  []string
	err    error
}

func (p *capturingProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.ClinicCloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.types = append(p.types, event.Type)
	return nil
}

func (p *capturingProducer) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

func outboxTestLogger() *logging.Logger {
	config := logging.DefaultConfig("outbox-test")
	config.Output = io.Discard
	return logging.New(config)
}

func seedOutboxEvent(t *testing.T, repo *memoryOutboxRepo, aggregateID string) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory("/outbox-test")
	cloudEvent := factory.CreateEvent(context.Background(),
		"clinic.reservation.created", aggregateID, cloudevents.ReservationData{
			ReservationID: aggregateID,
			StockRecordID: "stk-1",
			LocationID:    "clinic-north",
			Quantity:      3,
		})
	event, err := NewOutboxEventFromCloudEvent(aggregateID, "Reservation", "clinic.reservation", cloudEvent)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), event))
	return event
}

func TestPublisherDrainsOutbox(t *testing.T) {
	repo := newMemoryOutboxRepo()
	producer := &capturingProducer{}
	m := metrics.New(metrics.DefaultConfig("outbox-test"))

	seedOutboxEvent(t, repo, "rsv-1")
	seedOutboxEvent(t, repo, "rsv-2")

	publisher := NewPublisher(repo, producer, outboxTestLogger(), m, &PublisherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	require.NoError(t, publisher.Start(context.Background()))
	defer publisher.Stop()

	pkgtesting.AssertEventually(t, func() bool {
		return repo.publishedCount() == 2
	}, 2*time.Second, "outbox events drained")

	assert.Equal(t, 2, producer.published())
	assert.Equal(t, "clinic.reservation", producer.topics[0])
}

func TestPublisherRetriesFailedEvents(t *testing.T) {
	repo := newMemoryOutboxRepo()
	producer := &capturingProducer{err: errors.New("broker unavailable")}
	m := metrics.New(metrics.DefaultConfig("outbox-test"))

	event := seedOutboxEvent(t, repo, "rsv-1")

	publisher := NewPublisher(repo, producer, outboxTestLogger(), m, &PublisherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	require.NoError(t, publisher.Start(context.Background()))
	defer publisher.Stop()

	pkgtesting.AssertEventually(t, func() bool {
		return repo.retryCount(event.ID) >= 1
	}, 2*time.Second, "retry count incremented")

	assert.Zero(t, repo.publishedCount())

	stored, err := repo.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.LastError, "broker unavailable")
	assert.Nil(t, stored.PublishedAt)
}

func TestPublisherGivesUpAfterMaxRetries(t *testing.T) {
	repo := newMemoryOutboxRepo()
	seedOutboxEvent(t, repo, "rsv-1")
	repo.mu.Lock()
	for _, event := range repo.events {
		event.RetryCount = event.MaxRetries
	}
	repo.mu.Unlock()

	events, err := repo.FindUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events, "exhausted events are no longer offered for delivery")
}

func TestPublisherPrunesPublishedEvents(t *testing.T) {
	repo := newMemoryOutboxRepo()
	producer := &capturingProducer{}
	m := metrics.New(metrics.DefaultConfig("outbox-test"))

	stale := seedOutboxEvent(t, repo, "rsv-old")
	fresh := seedOutboxEvent(t, repo, "rsv-new")

	repo.mu.Lock()
	past := time.Now().Add(-2 * time.Hour)
	repo.events[stale.ID].PublishedAt = &past
	now := time.Now()
	repo.events[fresh.ID].PublishedAt = &now
	repo.mu.Unlock()

	publisher := NewPublisher(repo, producer, outboxTestLogger(), m, &PublisherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		Retention:    time.Hour,
	})

	require.NoError(t, publisher.Start(context.Background()))
	defer publisher.Stop()

	pkgtesting.AssertEventually(t, func() bool {
		_, err := repo.GetByID(context.Background(), stale.ID)
		return err != nil
	}, 2*time.Second, "stale published event pruned")

	kept, err := repo.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept.PublishedAt, "recent event survives pruning")
}

func TestPublisherStartStop(t *testing.T) {
	repo := newMemoryOutboxRepo()
	producer := &capturingProducer{}

	publisher := NewPublisher(repo, producer, outboxTestLogger(), nil, nil)

	require.NoError(t, publisher.Start(context.Background()))
	assert.True(t, publisher.IsRunning())
	assert.Error(t, publisher.Start(context.Background()), "double start rejected")

	require.NoError(t, publisher.Stop())
	assert.False(t, publisher.IsRunning())
	assert.Error(t, publisher.Stop(), "double stop rejected")

	// A stopped publisher starts again on fresh loop channels.
	require.NoError(t, publisher.Start(context.Background()))
	assert.True(t, publisher.IsRunning())
	require.NoError(t, publisher.Stop())
}
