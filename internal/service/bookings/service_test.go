package bookings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	bookingRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/booking"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/bookings/models"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fixedTimer struct{ now time.Time }

func (t fixedTimer) Now() time.Time { return t.now }

// fakeTxManager выполняет функцию без реальной транзакции
type fakeTxManager struct{}

func (fakeTxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeBookingRepo struct {
	byID map[uuid.UUID]*domain.Booking
}

func newFakeBookingRepo(bs ...*domain.Booking) *fakeBookingRepo {
	repo := &fakeBookingRepo{byID: make(map[uuid.UUID]*domain.Booking)}
	for _, b := range bs {
		repo.byID[b.ID] = b
	}
	return repo
}

func (f *fakeBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingRepo) GetByCustomerID(_ context.Context, tenantID, customerID int64, status *domain.BookingStatus) ([]*domain.Booking, error) {
	var out []*domain.Booking
	for _, b := range f.byID {
		if b.TenantID != tenantID || b.CustomerID != customerID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBookingRepo) GetByResourceWithFilter(_ context.Context, filter domain.ResourceBookingsFilter) ([]*domain.Booking, error) {
	var out []*domain.Booking
	for _, b := range f.byID {
		if b.TenantID != filter.TenantID || b.ResourceID != filter.ResourceID {
			continue
		}
		if !filter.IncludeInactive && !b.IsActive() {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBookingRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, expected, next domain.BookingStatus) error {
	b, ok := f.byID[id]
	if !ok {
		return bookingRepo.ErrBookingNotFound
	}
	if b.Status != expected {
		return bookingRepo.ErrStatusNotExpected
	}
	b.Status = next
	return nil
}

func (f *fakeBookingRepo) CancelIf(_ context.Context, id uuid.UUID, expected domain.BookingStatus, reason string) error {
	b, ok := f.byID[id]
	if !ok {
		return bookingRepo.ErrBookingNotFound
	}
	if b.Status != expected {
		return bookingRepo.ErrStatusNotExpected
	}
	b.Status = domain.StatusCancelled
	b.CancellationReason = &reason
	return nil
}

type fakeOutbox struct {
	events []*domain.OutboxEvent
}

func (f *fakeOutbox) Append(_ context.Context, event *domain.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func testBooking(status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:                uuid.New(),
		TenantID:          1,
		ResourceID:        7,
		ServiceID:         3,
		CustomerID:        42,
		StartAt:           time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
		Status:            status,
		ClientGeneratedID: uuid.New(),
	}
}

func newTestService(repo *fakeBookingRepo, outbox *fakeOutbox, now time.Time) *Service {
	return NewService(repo, outbox, fakeTxManager{}, fixedTimer{now: now}, nopLogger{})
}

func TestService_Confirm(t *testing.T) {
	b := testBooking(domain.StatusPending)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}
	svc := newTestService(repo, outbox, time.Now().UTC())

	resp, err := svc.Confirm(context.Background(), 1, b.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusConfirmed), resp.Status)
	assert.Equal(t, domain.StatusConfirmed, repo.byID[b.ID].Status)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingConfirmed, outbox.events[0].EventCode)

	var payload domain.BookingEventPayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	assert.Equal(t, b.ID, payload.BookingID)
	assert.Equal(t, domain.StatusConfirmed, payload.Status)
	require.NotNil(t, payload.PreviousStatus)
	assert.Equal(t, domain.StatusPending, *payload.PreviousStatus)
}

func TestService_Confirm_InvalidTransition(t *testing.T) {
	b := testBooking(domain.StatusCompleted)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}
	svc := newTestService(repo, outbox, time.Now().UTC())

	_, err := svc.Confirm(context.Background(), 1, b.ID)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, outbox.events, "неудачный переход не должен порождать событий")
	assert.Equal(t, domain.StatusCompleted, repo.byID[b.ID].Status)
}

func TestService_Confirm_TenantMismatch(t *testing.T) {
	b := testBooking(domain.StatusPending)
	repo := newFakeBookingRepo(b)
	svc := newTestService(repo, &fakeOutbox{}, time.Now().UTC())

	_, err := svc.Confirm(context.Background(), 999, b.ID)

	assert.ErrorIs(t, err, ErrBookingNotFound, "чужое бронирование неотличимо от несуществующего")
}

func TestService_LifecycleChain(t *testing.T) {
	b := testBooking(domain.StatusPending)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}
	svc := newTestService(repo, outbox, b.StartAt.Add(5*time.Minute))

	_, err := svc.Confirm(context.Background(), 1, b.ID)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), 1, b.ID)
	require.NoError(t, err)

	resp, err := svc.Complete(context.Background(), 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCompleted), resp.Status)

	require.Len(t, outbox.events, 3)
	assert.Equal(t, domain.EventBookingConfirmed, outbox.events[0].EventCode)
	assert.Equal(t, domain.EventBookingCheckedIn, outbox.events[1].EventCode)
	assert.Equal(t, domain.EventBookingCompleted, outbox.events[2].EventCode)
}

func TestService_Cancel(t *testing.T) {
	b := testBooking(domain.StatusConfirmed)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}
	now := time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
	svc := newTestService(repo, outbox, now)

	resp, err := svc.Cancel(context.Background(), 1, b.ID, &models.CancelBookingRequest{
		CancellationReason: "customer request",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusCancelled), resp.Status)
	require.NotNil(t, resp.CancellationReason)
	assert.Equal(t, "customer request", *resp.CancellationReason)
	require.NotNil(t, resp.CancelledAt)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingCancelled, outbox.events[0].EventCode)

	var payload domain.BookingEventPayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	require.NotNil(t, payload.Reason)
	assert.Equal(t, "customer request", *payload.Reason)
}

func TestService_Cancel_TerminalStatus(t *testing.T) {
	b := testBooking(domain.StatusCompleted)
	repo := newFakeBookingRepo(b)
	svc := newTestService(repo, &fakeOutbox{}, time.Now().UTC())

	_, err := svc.Cancel(context.Background(), 1, b.ID, &models.CancelBookingRequest{CancellationReason: "late"})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_MarkNoShow(t *testing.T) {
	b := testBooking(domain.StatusConfirmed)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}

	// До начала окна неявка не фиксируется
	early := newTestService(repo, outbox, b.StartAt.Add(-time.Minute))
	_, err := early.MarkNoShow(context.Background(), 1, b.ID)
	assert.ErrorIs(t, err, ErrTooEarlyForNoShow)
	assert.Equal(t, domain.StatusConfirmed, repo.byID[b.ID].Status)

	// После начала - фиксируется
	late := newTestService(repo, outbox, b.StartAt.Add(10*time.Minute))
	resp, err := late.MarkNoShow(context.Background(), 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusNoShow), resp.Status)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingNoShow, outbox.events[0].EventCode)
}

func TestService_Fail(t *testing.T) {
	b := testBooking(domain.StatusPending)
	repo := newFakeBookingRepo(b)
	outbox := &fakeOutbox{}
	svc := newTestService(repo, outbox, time.Now().UTC())

	reason := "payment declined"
	resp, err := svc.Fail(context.Background(), 1, b.ID, &reason)
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusFailed), resp.Status)
	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingFailed, outbox.events[0].EventCode)
}

func TestService_GetCustomerBookings_InvalidStatus(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newTestService(repo, &fakeOutbox{}, time.Now().UTC())

	bad := "definitely-not-a-status"
	_, err := svc.GetCustomerBookings(context.Background(), &models.GetCustomerBookingsRequest{
		TenantID:   1,
		CustomerID: 42,
		Status:     &bad,
	})

	assert.ErrorIs(t, err, ErrInvalidInput)
}
