package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-ScheduleEngine/internal/domain"
	scheduleRepo "github.com/m04kA/SMC-ScheduleEngine/internal/infra/storage/schedule"
	"github.com/m04kA/SMC-ScheduleEngine/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-ScheduleEngine/internal/service/schedule/models"
	"github.com/m04kA/SMC-ScheduleEngine/pkg/ptr"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeTxManager struct{}

func (fakeTxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCatalog struct {
	resources map[int64]*catalogservice.Resource
}

func (f *fakeCatalog) GetResource(_ context.Context, tenantID, resourceID int64) (*catalogservice.Resource, error) {
	r, ok := f.resources[resourceID]
	if !ok || r.TenantID != tenantID {
		return nil, catalogservice.ErrResourceNotFound
	}
	return r, nil
}

type fakeScheduleRepo struct {
	rules      []*domain.AvailabilityRule
	exceptions map[string]*domain.AvailabilityException
	version    int
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{exceptions: make(map[string]*domain.AvailabilityException)}
}

func (f *fakeScheduleRepo) GetCurrentRules(_ context.Context, tenantID, resourceID int64) ([]*domain.AvailabilityRule, error) {
	var out []*domain.AvailabilityRule
	for _, r := range f.rules {
		if r.TenantID == tenantID && r.ResourceID == resourceID && r.IsCurrent() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) ReplaceRules(_ context.Context, tenantID, resourceID int64, rules []*domain.AvailabilityRule) ([]*domain.AvailabilityRule, error) {
	now := time.Now()
	for _, r := range f.rules {
		if r.TenantID == tenantID && r.ResourceID == resourceID && r.IsCurrent() {
			r.SupersededAt = &now
		}
	}
	f.version++
	for i, r := range rules {
		r.ID = int64(len(f.rules) + i + 1)
		r.TenantID = tenantID
		r.ResourceID = resourceID
		r.Version = f.version
	}
	f.rules = append(f.rules, rules...)
	return rules, nil
}

func (f *fakeScheduleRepo) GetExceptionsInRange(_ context.Context, tenantID, resourceID int64, from, to time.Time) ([]*domain.AvailabilityException, error) {
	var out []*domain.AvailabilityException
	for _, e := range f.exceptions {
		if e.TenantID == tenantID && e.ResourceID == resourceID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) UpsertException(_ context.Context, exc *domain.AvailabilityException) (*domain.AvailabilityException, error) {
	exc.ID = int64(len(f.exceptions) + 1)
	f.exceptions[exc.Date.Format(domain.DateFormat)] = exc
	return exc, nil
}

func (f *fakeScheduleRepo) DeleteException(_ context.Context, tenantID, resourceID int64, date time.Time) error {
	key := date.Format(domain.DateFormat)
	if _, ok := f.exceptions[key]; !ok {
		return scheduleRepo.ErrExceptionNotFound
	}
	delete(f.exceptions, key)
	return nil
}

func newTestService(repo *fakeScheduleRepo) *Service {
	catalog := &fakeCatalog{resources: map[int64]*catalogservice.Resource{
		7: {ID: 7, TenantID: 1, Type: "room", Timezone: "Europe/Moscow"},
	}}
	return NewService(repo, catalog, fakeTxManager{}, nopLogger{})
}

func TestService_ReplaceRules_Versioning(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := newTestService(repo)

	first := &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 7,
		Rules: []models.RuleInput{
			{Weekday: ptr.Ptr(1), StartTime: "09:00", EndTime: "18:00"},
		},
	}
	resp, err := svc.ReplaceRules(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, 1, resp.Rules[0].Version)
	assert.Equal(t, "Europe/Moscow", resp.Timezone)

	second := &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 7,
		Rules: []models.RuleInput{
			{Weekday: ptr.Ptr(1), StartTime: "10:00", EndTime: "16:00"},
			{Weekday: ptr.Ptr(2), StartTime: "10:00", EndTime: "16:00"},
		},
	}
	resp, err = svc.ReplaceRules(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, resp.Rules, 2)
	assert.Equal(t, 2, resp.Rules[0].Version)

	// Действующими остались только правила последней версии
	current, err := repo.GetCurrentRules(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Len(t, current, 2)
}

func TestService_ReplaceRules_EmptySetAllowed(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := newTestService(repo)

	_, err := svc.ReplaceRules(context.Background(), &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 7,
		Rules: []models.RuleInput{
			{Weekday: ptr.Ptr(1), StartTime: "09:00", EndTime: "18:00"},
		},
	})
	require.NoError(t, err)

	// Пустой набор делает ресурс недоступным, но не является ошибкой
	resp, err := svc.ReplaceRules(context.Background(), &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 7,
		Rules:      []models.RuleInput{},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Rules)

	current, err := repo.GetCurrentRules(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestService_ReplaceRules_Validation(t *testing.T) {
	svc := newTestService(newFakeScheduleRepo())

	tests := []struct {
		name string
		rule models.RuleInput
	}{
		{"start after end", models.RuleInput{Weekday: ptr.Ptr(1), StartTime: "18:00", EndTime: "09:00"}},
		{"bad time format", models.RuleInput{Weekday: ptr.Ptr(1), StartTime: "9am", EndTime: "18:00"}},
		{"weekday out of range", models.RuleInput{Weekday: ptr.Ptr(9), StartTime: "09:00", EndTime: "18:00"}},
		{"negative buffer", models.RuleInput{Weekday: ptr.Ptr(1), StartTime: "09:00", EndTime: "18:00", BufferBeforeMinutes: -5}},
		{"no weekday and no date range", models.RuleInput{StartTime: "09:00", EndTime: "18:00"}},
		{"date range inverted", models.RuleInput{DateFrom: ptr.Ptr("2025-10-20"), DateTo: ptr.Ptr("2025-10-10"), StartTime: "09:00", EndTime: "18:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReplaceRules(context.Background(), &models.ReplaceRulesRequest{
				TenantID:   1,
				ResourceID: 7,
				Rules:      []models.RuleInput{tt.rule},
			})
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_ReplaceRules_UnknownResource(t *testing.T) {
	svc := newTestService(newFakeScheduleRepo())

	_, err := svc.ReplaceRules(context.Background(), &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 999,
		Rules:      []models.RuleInput{},
	})

	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestService_UpsertException(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := newTestService(repo)

	// Закрытый день
	resp, err := svc.UpsertException(context.Background(), &models.UpsertExceptionRequest{
		TenantID:   1,
		ResourceID: 7,
		Date:       "2025-12-31",
		Closed:     true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Closed)

	// Переопределение окна на ту же дату заменяет исключение
	resp, err = svc.UpsertException(context.Background(), &models.UpsertExceptionRequest{
		TenantID:   1,
		ResourceID: 7,
		Date:       "2025-12-31",
		StartTime:  ptr.Ptr("12:00"),
		EndTime:    ptr.Ptr("15:00"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Closed)
	require.NotNil(t, resp.StartTime)
	assert.Equal(t, "12:00", *resp.StartTime)

	assert.Len(t, repo.exceptions, 1, "на одну дату ресурса может быть только одно исключение")
}

func TestService_UpsertException_Validation(t *testing.T) {
	svc := newTestService(newFakeScheduleRepo())

	tests := []struct {
		name string
		req  models.UpsertExceptionRequest
	}{
		{"closed with window", models.UpsertExceptionRequest{TenantID: 1, ResourceID: 7, Date: "2025-12-31", Closed: true, StartTime: ptr.Ptr("10:00"), EndTime: ptr.Ptr("12:00")}},
		{"open without window", models.UpsertExceptionRequest{TenantID: 1, ResourceID: 7, Date: "2025-12-31"}},
		{"window inverted", models.UpsertExceptionRequest{TenantID: 1, ResourceID: 7, Date: "2025-12-31", StartTime: ptr.Ptr("15:00"), EndTime: ptr.Ptr("12:00")}},
		{"bad date", models.UpsertExceptionRequest{TenantID: 1, ResourceID: 7, Date: "31.12.2025", Closed: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpsertException(context.Background(), &tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_DeleteException(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := newTestService(repo)

	date := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	err := svc.DeleteException(context.Background(), 1, 7, date)
	assert.ErrorIs(t, err, ErrExceptionNotFound)

	_, err = svc.UpsertException(context.Background(), &models.UpsertExceptionRequest{
		TenantID:   1,
		ResourceID: 7,
		Date:       "2025-12-31",
		Closed:     true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteException(context.Background(), 1, 7, date))
	assert.Empty(t, repo.exceptions)
}

func TestService_GetAvailability(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := newTestService(repo)

	_, err := svc.ReplaceRules(context.Background(), &models.ReplaceRulesRequest{
		TenantID:   1,
		ResourceID: 7,
		Rules: []models.RuleInput{
			{Weekday: ptr.Ptr(1), StartTime: "09:00", EndTime: "18:00", BufferAfterMinutes: 10},
		},
	})
	require.NoError(t, err)

	_, err = svc.UpsertException(context.Background(), &models.UpsertExceptionRequest{
		TenantID:   1,
		ResourceID: 7,
		Date:       "2025-12-31",
		Closed:     true,
	})
	require.NoError(t, err)

	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	resp, err := svc.GetAvailability(context.Background(), 1, 7, from, to)
	require.NoError(t, err)

	assert.Equal(t, int64(7), resp.ResourceID)
	assert.Equal(t, "Europe/Moscow", resp.Timezone)
	require.Len(t, resp.Rules, 1)
	assert.Equal(t, 10, resp.Rules[0].BufferAfterMinutes)
	require.Len(t, resp.Exceptions, 1)
	assert.True(t, resp.Exceptions[0].Closed)
}
