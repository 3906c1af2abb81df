package apply_payment_result

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
	"github.com/m04kA/SMC-ScheduleEngine/pkg/ptr"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fixedTimer struct{ now time.Time }

func (t fixedTimer) Now() time.Time { return t.now }

type fakeTxManager struct{}

func (fakeTxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeBookingRepo struct {
	bookings map[uuid.UUID]*domain.Booking
}

func newFakeBookingRepo(bs ...*domain.Booking) *fakeBookingRepo {
	repo := &fakeBookingRepo{bookings: make(map[uuid.UUID]*domain.Booking)}
	for _, b := range bs {
		repo.bookings[b.ID] = b
	}
	return repo
}

func (f *fakeBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBookingRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, expected, next domain.BookingStatus) error {
	b, ok := f.bookings[id]
	if !ok {
		return bookingRepo.ErrBookingNotFound
	}
	if b.Status != expected {
		return bookingRepo.ErrStatusNotExpected
	}
	b.Status = next
	return nil
}

type fakeOutboxRepo struct {
	events []*domain.OutboxEvent
}

func (f *fakeOutboxRepo) Append(_ context.Context, event *domain.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func pendingBooking(id uuid.UUID) *domain.Booking {
	return &domain.Booking{
		ID:                id,
		TenantID:          1,
		ResourceID:        7,
		ServiceID:         3,
		CustomerID:        42,
		StartAt:           time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC),
		EndAt:             time.Date(2025, 10, 15, 11, 0, 0, 0, time.UTC),
		Status:            domain.StatusPending,
		ClientGeneratedID: uuid.New(),
	}
}

func newTestUseCase(repo *fakeBookingRepo, outbox *fakeOutboxRepo) *UseCase {
	uc := NewUseCase(repo, outbox, fakeTxManager{}, nopLogger{})
	uc.timer = fixedTimer{now: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)}
	return uc
}

func TestExecute_PaymentSuccess(t *testing.T) {
	id := uuid.New()
	repo := newFakeBookingRepo(pendingBooking(id))
	outbox := &fakeOutboxRepo{}
	uc := newTestUseCase(repo, outbox)

	resp, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: true})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
	assert.False(t, resp.Replayed)
	assert.Equal(t, domain.StatusConfirmed, repo.bookings[id].Status, "статус должен обновиться в хранилище")

	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingConfirmed, outbox.events[0].EventCode)

	var payload domain.BookingEventPayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	require.NotNil(t, payload.PreviousStatus)
	assert.Equal(t, domain.StatusPending, *payload.PreviousStatus)
}

func TestExecute_PaymentDeclined(t *testing.T) {
	id := uuid.New()
	repo := newFakeBookingRepo(pendingBooking(id))
	outbox := &fakeOutboxRepo{}
	uc := newTestUseCase(repo, outbox)

	resp, err := uc.Execute(context.Background(), Request{
		TenantID:      1,
		BookingID:     id,
		Success:       false,
		FailureReason: ptr.Ptr("card declined"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, resp.Status)

	require.Len(t, outbox.events, 1)
	assert.Equal(t, domain.EventBookingFailed, outbox.events[0].EventCode)

	var payload domain.BookingEventPayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	require.NotNil(t, payload.Reason)
	assert.Equal(t, "card declined", *payload.Reason)
}

func TestExecute_DuplicateCallbackIsNoop(t *testing.T) {
	id := uuid.New()
	repo := newFakeBookingRepo(pendingBooking(id))
	outbox := &fakeOutboxRepo{}
	uc := newTestUseCase(repo, outbox)

	_, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: true})
	require.NoError(t, err)

	resp, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: true})

	require.NoError(t, err)
	assert.True(t, resp.Replayed)
	assert.Equal(t, domain.StatusConfirmed, resp.Status)
	assert.Len(t, outbox.events, 1, "повторный callback не должен создавать событий")
}

func TestExecute_ConflictingResultAfterApply(t *testing.T) {
	// Успех уже применён, после чего приходит отказ - бронирование больше не pending
	id := uuid.New()
	repo := newFakeBookingRepo(pendingBooking(id))
	outbox := &fakeOutboxRepo{}
	uc := newTestUseCase(repo, outbox)

	_, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: true})
	require.NoError(t, err)

	_, err = uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: false})

	assert.ErrorIs(t, err, ErrNotAwaitingPayment)
}

func TestExecute_NotPendingBooking(t *testing.T) {
	id := uuid.New()
	b := pendingBooking(id)
	b.Status = domain.StatusCheckedIn
	repo := newFakeBookingRepo(b)
	uc := newTestUseCase(repo, &fakeOutboxRepo{})

	_, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: id, Success: true})

	assert.ErrorIs(t, err, ErrNotAwaitingPayment)
}

func TestExecute_TenantMismatch(t *testing.T) {
	id := uuid.New()
	repo := newFakeBookingRepo(pendingBooking(id))
	uc := newTestUseCase(repo, &fakeOutboxRepo{})

	_, err := uc.Execute(context.Background(), Request{TenantID: 99, BookingID: id, Success: true})

	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.Equal(t, domain.StatusPending, repo.bookings[id].Status)
}

func TestExecute_BookingNotFound(t *testing.T) {
	repo := newFakeBookingRepo()
	uc := newTestUseCase(repo, &fakeOutboxRepo{})

	_, err := uc.Execute(context.Background(), Request{TenantID: 1, BookingID: uuid.New(), Success: true})

	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestExecute_Validation(t *testing.T) {
	uc := newTestUseCase(newFakeBookingRepo(), &fakeOutboxRepo{})

	tests := []struct {
		name string
		req  Request
	}{
		{"нулевой tenantId", Request{TenantID: 0, BookingID: uuid.New()}},
		{"пустой bookingId", Request{TenantID: 1, BookingID: uuid.Nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
