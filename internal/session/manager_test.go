package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/observability"
	"github.com/spec-kit/chat-escalation/internal/repository"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

type fakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]*domain.Tenant
}

func newFakeTenantRepo(tenants ...*domain.Tenant) *fakeTenantRepo {
	repo := &fakeTenantRepo{tenants: map[string]*domain.Tenant{}}
	for _, tenant := range tenants {
		repo.tenants[tenant.ID] = tenant
	}
	return repo
}

func (f *fakeTenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantRepo) Update(_ context.Context, tenant *domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tenant
	return &clone, nil
}

func (f *fakeTenantRepo) List(_ context.Context) ([]domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Tenant
	for _, tenant := range f.tenants {
		result = append(result, *tenant)
	}
	return result, nil
}

func (f *fakeTenantRepo) UpdateStatus(_ context.Context, id string, status domain.ConnectionStatus, message *string, connected bool, occurredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant, ok := f.tenants[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if !occurredAt.After(tenant.StatusChangedAt) {
		return apperrors.NewStaleTransition(id)
	}
	tenant.Status = status
	tenant.StatusMessage = message
	tenant.Connected = connected
	tenant.StatusChangedAt = occurredAt
	return nil
}

var _ repository.TenantRepository = (*fakeTenantRepo)(nil)

type sentNotice struct {
	address string
	text    string
}

type fakeRelay struct {
	mu    sync.Mutex
	sends []sentNotice
	err   error
}

func (f *fakeRelay) Send(_ context.Context, channelAddress, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentNotice{address: channelAddress, text: text})
	return nil
}

func (f *fakeRelay) sent() []sentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotice{}, f.sends...)
}

func testTenant(id string, status domain.ConnectionStatus, changedAt time.Time) *domain.Tenant {
	return &domain.Tenant{
		ID:                      id,
		Name:                    "Acme",
		ChannelAddress:          "12345",
		ResponseDeadlineMinutes: 5,
		Status:                  status,
		StatusChangedAt:         changedAt,
	}
}

func newTestManager(repo repository.TenantRepository, rl *fakeRelay) *Manager {
	return NewManager(Dependencies{
		TenantRepo: repo,
		Relay:      rl,
		Logger:     zap.NewNop(),
		Metrics:    observability.NewMetrics(),
	})
}

func TestTransitionReturnsPreviousState(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusPending, base))
	manager := newTestManager(repo, &fakeRelay{})

	previous, err := manager.Transition(context.Background(), "t1", domain.StatusScanned, nil, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, previous)

	tenant, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScanned, tenant.Status)
}

func TestTransitionRejectsStaleTimestamp(t *testing.T) {
	base := time.Now()
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusScanned, base))
	manager := newTestManager(repo, &fakeRelay{})

	_, err := manager.Transition(context.Background(), "t1", domain.StatusReady, nil, base.Add(-time.Second))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STALE_TRANSITION"))

	// Equal timestamps are stale as well.
	_, err = manager.Transition(context.Background(), "t1", domain.StatusReady, nil, base)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STALE_TRANSITION"))

	tenant, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScanned, tenant.Status)
	assert.Equal(t, base, tenant.StatusChangedAt)
}

func TestTransitionRejectsInvalidJump(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusPending, base))
	manager := newTestManager(repo, &fakeRelay{})

	_, err := manager.Transition(context.Background(), "t1", domain.StatusDisconnected, nil, base.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestTransitionAnyStateReentersPending(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusDisconnected, base))
	manager := newTestManager(repo, &fakeRelay{})

	previous, err := manager.Transition(context.Background(), "t1", domain.StatusPending, nil, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, previous)
}

func TestTransitionToErrorNotifiesChannel(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusReady, base))
	rl := &fakeRelay{}
	manager := newTestManager(repo, rl)

	reason := "socket closed"
	_, err := manager.Transition(context.Background(), "t1", domain.StatusError, &reason, base.Add(time.Minute))
	require.NoError(t, err)

	sends := rl.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "12345", sends[0].address)
	assert.Contains(t, sends[0].text, "socket closed")
	assert.Contains(t, sends[0].text, "error")
}

func TestTransitionRelayFailureDoesNotFailTransition(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	repo := newFakeTenantRepo(testTenant("t1", domain.StatusReady, base))
	rl := &fakeRelay{err: apperrors.NewRelayDeliveryFailed("unreachable", nil)}
	manager := newTestManager(repo, rl)

	_, err := manager.Transition(context.Background(), "t1", domain.StatusDisconnected, nil, base.Add(time.Minute))
	require.NoError(t, err)

	tenant, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, tenant.Status)
	assert.False(t, tenant.Connected)
}

func TestIsUsableOnlyWhenReady(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	states := map[domain.ConnectionStatus]bool{
		domain.StatusPending:      false,
		domain.StatusScanned:      false,
		domain.StatusReady:        true,
		domain.StatusError:        false,
		domain.StatusDisconnected: false,
	}
	for state, want := range states {
		repo := newFakeTenantRepo(testTenant("t1", state, base))
		manager := newTestManager(repo, &fakeRelay{})
		usable, err := manager.IsUsable(context.Background(), "t1")
		require.NoError(t, err)
		assert.Equal(t, want, usable, "state %s", state)
	}
}

func TestIsUsableUnknownTenant(t *testing.T) {
	manager := newTestManager(newFakeTenantRepo(), &fakeRelay{})
	_, err := manager.IsUsable(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}
