package get_outbox_events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/api/middleware"
	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeOutboxRepo struct {
	events []*domain.OutboxEvent

	gotTenantID int64
	gotStatus   *domain.OutboxStatus
	gotLimit    int
}

func (f *fakeOutboxRepo) GetByTenant(_ context.Context, tenantID int64, status *domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	f.gotTenantID = tenantID
	f.gotStatus = status
	f.gotLimit = limit

	out := make([]*domain.OutboxEvent, 0, len(f.events))
	for _, e := range f.events {
		if e.TenantID != tenantID {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func serveRequest(repo *fakeOutboxRepo, target, tenantHeader string) *httptest.ResponseRecorder {
	h := NewHandler(repo, nopLogger{})
	srv := middleware.TenantAuth(http.HandlerFunc(h.Handle))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if tenantHeader != "" {
		req.Header.Set(middleware.HeaderTenantID, tenantHeader)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandle_ReturnsTenantEvents(t *testing.T) {
	repo := &fakeOutboxRepo{
		events: []*domain.OutboxEvent{
			{
				ID:        uuid.New(),
				TenantID:  1,
				EventCode: domain.EventBookingCreated,
				Payload:   json.RawMessage(`{"bookingId":"x"}`),
				Status:    domain.OutboxStatusPending,
				ReadyAt:   time.Now(),
				CreatedAt: time.Now(),
			},
			{
				ID:        uuid.New(),
				TenantID:  2,
				EventCode: domain.EventBookingCancelled,
				Status:    domain.OutboxStatusPending,
			},
		},
	}

	rec := serveRequest(repo, "/api/v1/outbox-events", "1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), repo.gotTenantID)
	assert.Nil(t, repo.gotStatus)
	assert.Equal(t, defaultLimit, repo.gotLimit)

	var resp OutboxEventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1, "события чужого тенанта не отдаются")
	assert.Equal(t, domain.EventBookingCreated, resp.Events[0].EventCode)
	assert.Equal(t, string(domain.OutboxStatusPending), resp.Events[0].Status)
}

func TestHandle_FiltersByStatusAndLimit(t *testing.T) {
	repo := &fakeOutboxRepo{}

	rec := serveRequest(repo, "/api/v1/outbox-events?status=failed&limit=5", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), repo.gotTenantID)
	require.NotNil(t, repo.gotStatus)
	assert.Equal(t, domain.OutboxStatusFailed, *repo.gotStatus)
	assert.Equal(t, 5, repo.gotLimit)
}

func TestHandle_InvalidStatus(t *testing.T) {
	rec := serveRequest(&fakeOutboxRepo{}, "/api/v1/outbox-events?status=delivered", "1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_InvalidLimit(t *testing.T) {
	rec := serveRequest(&fakeOutboxRepo{}, "/api/v1/outbox-events?limit=-1", "1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_MissingTenantHeader(t *testing.T) {
	rec := serveRequest(&fakeOutboxRepo{}, "/api/v1/outbox-events", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
