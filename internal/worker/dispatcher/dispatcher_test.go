package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeTxManager struct{}

func (fakeTxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOutboxRepo struct {
	events []*domain.OutboxEvent

	dispatched  []uuid.UUID
	rescheduled map[uuid.UUID]time.Time
	failed      []uuid.UUID
}

func newFakeOutboxRepo(events ...*domain.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		events:      events,
		rescheduled: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeOutboxRepo) FetchPending(_ context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	now := time.Now().UTC()
	for _, e := range f.events {
		if e.Status == domain.OutboxStatusPending && !e.ReadyAt.After(now) {
			out = append(out, e)
			if len(out) == batchSize {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkDispatched(_ context.Context, id uuid.UUID) error {
	f.dispatched = append(f.dispatched, id)
	f.setStatus(id, domain.OutboxStatusDispatched)
	return nil
}

func (f *fakeOutboxRepo) RescheduleAttempt(_ context.Context, id uuid.UUID, readyAt time.Time, _ string) error {
	f.rescheduled[id] = readyAt
	for _, e := range f.events {
		if e.ID == id {
			e.AttemptCount++
			e.ReadyAt = readyAt
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	f.failed = append(f.failed, id)
	f.setStatus(id, domain.OutboxStatusFailed)
	return nil
}

func (f *fakeOutboxRepo) setStatus(id uuid.UUID, status domain.OutboxStatus) {
	for _, e := range f.events {
		if e.ID == id {
			e.Status = status
		}
	}
}

type publishedMessage struct {
	routingKey string
	messageID  string
	body       []byte
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (f *fakePublisher) Publish(routingKey, messageID string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{routingKey: routingKey, messageID: messageID, body: body})
	return nil
}

func pendingEvent(tenantID int64, eventCode string) *domain.OutboxEvent {
	payload, _ := json.Marshal(map[string]string{"test": "payload"})
	return &domain.OutboxEvent{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EventCode: eventCode,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		ReadyAt:   time.Now().UTC().Add(-time.Second),
		CreatedAt: time.Now().UTC(),
	}
}

func testConfig() Config {
	return Config{
		Workers:      1,
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		BackoffBase:  100 * time.Millisecond,
	}
}

func TestDispatchBatch_PublishesAndMarksDispatched(t *testing.T) {
	event := pendingEvent(1, domain.EventBookingCreated)
	repo := newFakeOutboxRepo(event)
	pub := &fakePublisher{}

	d := New(repo, pub, fakeTxManager{}, nil, testConfig(), nopLogger{})

	processed, err := d.DispatchBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "booking.1.booking_created", pub.published[0].routingKey)
	assert.Equal(t, event.ID.String(), pub.published[0].messageID)
	assert.Equal(t, []byte(event.Payload), pub.published[0].body)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.dispatched)
}

func TestDispatchBatch_RoutingKeyPerTenantAndCode(t *testing.T) {
	first := pendingEvent(7, domain.EventBookingCancelled)
	second := pendingEvent(42, domain.EventPaymentRequired)
	repo := newFakeOutboxRepo(first, second)
	pub := &fakePublisher{}

	d := New(repo, pub, fakeTxManager{}, nil, testConfig(), nopLogger{})

	processed, err := d.DispatchBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	require.Len(t, pub.published, 2)
	assert.Equal(t, "booking.7.booking_cancelled", pub.published[0].routingKey)
	assert.Equal(t, "booking.42.payment_required", pub.published[1].routingKey)
}

func TestDispatchBatch_PublishErrorReschedulesWithBackoff(t *testing.T) {
	event := pendingEvent(1, domain.EventBookingCreated)
	repo := newFakeOutboxRepo(event)
	pub := &fakePublisher{err: errors.New("broker unavailable")}

	cfg := testConfig()
	d := New(repo, pub, fakeTxManager{}, nil, cfg, nopLogger{})

	before := time.Now().UTC()
	processed, err := d.DispatchBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Empty(t, repo.dispatched)
	assert.Empty(t, repo.failed)

	readyAt, ok := repo.rescheduled[event.ID]
	require.True(t, ok, "событие должно быть перепланировано")
	// Первая попытка: задержка = BackoffBase
	assert.False(t, readyAt.Before(before.Add(cfg.BackoffBase)))
	assert.Equal(t, 1, event.AttemptCount)
}

func TestDispatchBatch_ExponentialBackoff(t *testing.T) {
	cfg := testConfig()
	d := New(nil, nil, fakeTxManager{}, nil, cfg, nopLogger{})

	assert.Equal(t, cfg.BackoffBase, d.backoff(0))
	assert.Equal(t, 2*cfg.BackoffBase, d.backoff(1))
	assert.Equal(t, 4*cfg.BackoffBase, d.backoff(2))
}

func TestDispatchBatch_MarksFailedAfterMaxAttempts(t *testing.T) {
	event := pendingEvent(1, domain.EventBookingCreated)
	event.AttemptCount = 2 // следующая попытка - третья, последняя
	repo := newFakeOutboxRepo(event)
	pub := &fakePublisher{err: errors.New("broker unavailable")}

	d := New(repo, pub, fakeTxManager{}, nil, testConfig(), nopLogger{})

	processed, err := d.DispatchBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed)
	assert.Empty(t, repo.rescheduled)
	assert.Equal(t, domain.OutboxStatusFailed, event.Status)
}

func TestDispatchBatch_SkipsNotReadyEvents(t *testing.T) {
	event := pendingEvent(1, domain.EventBookingCreated)
	event.ReadyAt = time.Now().UTC().Add(time.Hour)
	repo := newFakeOutboxRepo(event)
	pub := &fakePublisher{}

	d := New(repo, pub, fakeTxManager{}, nil, testConfig(), nopLogger{})

	processed, err := d.DispatchBatch(context.Background())

	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, pub.published)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{}

	cfg := testConfig()
	cfg.Workers = 3
	d := New(repo, pub, fakeTxManager{}, nil, cfg, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("диспетчер не остановился после отмены контекста")
	}
}
