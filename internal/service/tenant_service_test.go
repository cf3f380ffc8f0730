package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chat-escalation/internal/domain"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

type fakeTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{tenants: map[string]*domain.Tenant{}}
}

func (f *fakeTenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	tenant.ID = uuid.NewString()
	tenant.StatusChangedAt = time.Now()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	clone := *tenant
	f.tenants[tenant.ID] = &clone
	return nil
}

func (f *fakeTenantRepo) Update(_ context.Context, tenant *domain.Tenant) error {
	if _, ok := f.tenants[tenant.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *tenant
	f.tenants[tenant.ID] = &clone
	return nil
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tenant
	return &clone, nil
}

func (f *fakeTenantRepo) List(_ context.Context) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0, len(f.tenants))
	for _, tenant := range f.tenants {
		out = append(out, *tenant)
	}
	return out, nil
}

func (f *fakeTenantRepo) UpdateStatus(_ context.Context, id string, status domain.ConnectionStatus, message *string, connected bool, occurredAt time.Time) error {
	tenant, ok := f.tenants[id]
	if !ok {
		return pgx.ErrNoRows
	}
	tenant.Status = status
	tenant.StatusMessage = message
	tenant.Connected = connected
	tenant.StatusChangedAt = occurredAt
	return nil
}

func strPtr(s string) *string { return &s }

func validInput() TenantInput {
	return TenantInput{
		Name:                    "Acme Support",
		ChannelAddress:          "12345",
		ResponseDeadlineMinutes: 5,
		WorkingHoursStart:       strPtr("09:00"),
		WorkingHoursEnd:         strPtr("18:00"),
		TZOffsetMinutes:         120,
	}
}

func TestCreateTenantStartsPending(t *testing.T) {
	svc := NewTenantService(TenantDependencies{TenantRepo: newFakeTenantRepo()})

	tenant, err := svc.CreateTenant(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, domain.StatusPending, tenant.Status)
	assert.False(t, tenant.Connected)
}

func TestCreateTenantValidation(t *testing.T) {
	svc := NewTenantService(TenantDependencies{TenantRepo: newFakeTenantRepo()})

	cases := []struct {
		name   string
		mutate func(*TenantInput)
	}{
		{"empty name", func(in *TenantInput) { in.Name = "  " }},
		{"empty channel address", func(in *TenantInput) { in.ChannelAddress = "" }},
		{"deadline too large", func(in *TenantInput) { in.ResponseDeadlineMinutes = 31 }},
		{"negative deadline", func(in *TenantInput) { in.ResponseDeadlineMinutes = -1 }},
		{"half-open working hours", func(in *TenantInput) { in.WorkingHoursEnd = nil }},
		{"malformed clock", func(in *TenantInput) { in.WorkingHoursStart = strPtr("9am") }},
		{"clock out of range", func(in *TenantInput) { in.WorkingHoursEnd = strPtr("24:00") }},
		{"offset out of range", func(in *TenantInput) { in.TZOffsetMinutes = 15 * 60 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.CreateTenant(context.Background(), input)
			assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
		})
	}
}

func TestCreateTenantAllowsUnsetWorkingHours(t *testing.T) {
	svc := NewTenantService(TenantDependencies{TenantRepo: newFakeTenantRepo()})

	input := validInput()
	input.WorkingHoursStart = nil
	input.WorkingHoursEnd = nil

	_, err := svc.CreateTenant(context.Background(), input)
	assert.NoError(t, err)
}

func TestUpdateTenantPreservesConnectionState(t *testing.T) {
	repo := newFakeTenantRepo()
	svc := NewTenantService(TenantDependencies{TenantRepo: repo})

	tenant, err := svc.CreateTenant(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), tenant.ID, domain.StatusReady, nil, true, time.Now()))

	input := validInput()
	input.Name = "Acme Renamed"
	input.ResponseDeadlineMinutes = 10

	updated, err := svc.UpdateTenant(context.Background(), tenant.ID, input)
	require.NoError(t, err)

	assert.Equal(t, "Acme Renamed", updated.Name)
	assert.Equal(t, 10, updated.ResponseDeadlineMinutes)
	assert.Equal(t, domain.StatusReady, updated.Status)
	assert.True(t, updated.Connected)
}

func TestUpdateTenantUnknownID(t *testing.T) {
	svc := NewTenantService(TenantDependencies{TenantRepo: newFakeTenantRepo()})

	_, err := svc.UpdateTenant(context.Background(), "missing", validInput())
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}
