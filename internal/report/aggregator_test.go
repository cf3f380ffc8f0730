package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/observability"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

type fakeTenantRepo struct {
	tenants map[string]*domain.Tenant
}

func (f *fakeTenantRepo) Create(_ context.Context, t *domain.Tenant) error { return nil }
func (f *fakeTenantRepo) Update(_ context.Context, t *domain.Tenant) error { return nil }
func (f *fakeTenantRepo) List(_ context.Context) ([]domain.Tenant, error)  { return nil, nil }
func (f *fakeTenantRepo) UpdateStatus(_ context.Context, _ string, _ domain.ConnectionStatus, _ *string, _ bool, _ time.Time) error {
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

type fakeConversationRepo struct {
	conversations []domain.Conversation
	listErr       error
}

func (f *fakeConversationRepo) FindOrCreate(_ context.Context, _, _ string) (*domain.Conversation, error) {
	return nil, errors.New("not used")
}
func (f *fakeConversationRepo) GetByID(_ context.Context, _ string) (*domain.Conversation, error) {
	return nil, pgx.ErrNoRows
}
func (f *fakeConversationRepo) SetClosed(_ context.Context, _ string, _ bool) error      { return nil }
func (f *fakeConversationRepo) SetNeedsReview(_ context.Context, _ string, _ bool) error { return nil }

func (f *fakeConversationRepo) ListCreatedBetween(_ context.Context, tenantID string, from, to time.Time) ([]domain.Conversation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Conversation
	for _, conv := range f.conversations {
		if conv.TenantID == tenantID && !conv.CreatedAt.Before(from) && conv.CreatedAt.Before(to) {
			out = append(out, conv)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	messages []domain.Message
}

func (f *fakeMessageRepo) Append(_ context.Context, _ string, _ domain.MessageDirection, _ string, _ time.Time) (*domain.Message, error) {
	return nil, errors.New("not used")
}

func (f *fakeMessageRepo) ListByConversations(_ context.Context, ids []string, from, to time.Time) ([]domain.Message, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []domain.Message
	for _, msg := range f.messages {
		if _, ok := wanted[msg.ConversationID]; !ok {
			continue
		}
		if msg.CreatedAt.Before(from) || !msg.CreatedAt.Before(to) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

type fakeRelay struct {
	sent []string
	err  error
}

func (f *fakeRelay) Send(_ context.Context, _, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

var reportWindow = struct{ start, end time.Time }{
	start: time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC),
	end:   time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC),
}

func at(minuteOffset int) time.Time {
	return reportWindow.start.Add(time.Duration(minuteOffset) * time.Minute)
}

func reportFixture(relayErr error) (*Aggregator, *fakeConversationRepo, *fakeMessageRepo, *fakeRelay) {
	tenants := &fakeTenantRepo{tenants: map[string]*domain.Tenant{
		"t-1": {ID: "t-1", Name: "Acme Support", ChannelAddress: "12345", ResponseDeadlineMinutes: 5},
	}}
	conversations := &fakeConversationRepo{conversations: []domain.Conversation{
		// Closed, agent initiated: outbound only, no first-response latency.
		{ID: "c-1", TenantID: "t-1", CounterpartID: "cust-1", Closed: true, CreatedAt: at(10)},
		// Open and never answered.
		{ID: "c-2", TenantID: "t-1", CounterpartID: "cust-2", NeedsReview: true, CreatedAt: at(20)},
		// Answered after three minutes, past the overdue threshold.
		{ID: "c-3", TenantID: "t-1", CounterpartID: "cust-3", CreatedAt: at(30)},
	}}
	messages := &fakeMessageRepo{messages: []domain.Message{
		{ID: "m-1", ConversationID: "c-1", Direction: domain.DirectionOutbound, CreatedAt: at(10)},
		{ID: "m-2", ConversationID: "c-2", Direction: domain.DirectionInbound, CreatedAt: at(20)},
		{ID: "m-3", ConversationID: "c-3", Direction: domain.DirectionInbound, CreatedAt: at(30)},
		{ID: "m-4", ConversationID: "c-3", Direction: domain.DirectionOutbound, CreatedAt: at(33)},
	}}
	sink := &fakeRelay{err: relayErr}
	agg := NewAggregator(AggregatorDependencies{
		TenantRepo:       tenants,
		ConversationRepo: conversations,
		MessageRepo:      messages,
		Relay:            sink,
		Logger:           zap.NewNop(),
		Metrics:          observability.NewMetrics(),
	})
	return agg, conversations, messages, sink
}

func TestGenerateReportAggregatesWindow(t *testing.T) {
	agg, _, _, _ := reportFixture(nil)

	report, err := agg.GenerateReport(context.Background(), "t-1", reportWindow.start, reportWindow.end)
	require.NoError(t, err)

	assert.Equal(t, 3, report.StartedChats)
	assert.Equal(t, 1, report.ClosedChats)
	assert.Equal(t, 1, report.UnansweredChats)
	assert.Equal(t, 1, report.OverdueResponses)
	assert.Equal(t, 1, report.AnsweredChats)
	assert.Equal(t, 3*time.Minute, report.AverageFirstResponse)
	assert.Equal(t, []string{"cust-2"}, report.NeedsReviewRefs)
}

func TestGenerateReportEmptyWindow(t *testing.T) {
	agg, _, _, _ := reportFixture(nil)

	// A window before any conversation existed.
	report, err := agg.GenerateReport(context.Background(), "t-1",
		reportWindow.start.Add(-48*time.Hour), reportWindow.start.Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Zero(t, report.StartedChats)
	assert.Zero(t, report.AnsweredChats)
	assert.Contains(t, report.Format(), "Average first response: n/a")
}

func TestGenerateReportRejectsInvalidWindow(t *testing.T) {
	agg, _, _, _ := reportFixture(nil)

	_, err := agg.GenerateReport(context.Background(), "t-1", reportWindow.end, reportWindow.start)
	assert.True(t, apperrors.IsCode(err, "INVALID_WINDOW"))

	_, err = agg.GenerateReport(context.Background(), "t-1", reportWindow.start, reportWindow.start)
	assert.True(t, apperrors.IsCode(err, "INVALID_WINDOW"))
}

func TestGenerateReportUnknownTenant(t *testing.T) {
	agg, _, _, _ := reportFixture(nil)

	_, err := agg.GenerateReport(context.Background(), "missing", reportWindow.start, reportWindow.end)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestSendReportDeliversFormattedText(t *testing.T) {
	agg, _, _, sink := reportFixture(nil)

	_, err := agg.SendReport(context.Background(), "t-1", reportWindow.start, reportWindow.end)
	require.NoError(t, err)

	require.Len(t, sink.sent, 1)
	text := sink.sent[0]
	assert.True(t, strings.HasPrefix(text, "Report for Acme Support"))
	assert.Contains(t, text, "Started chats: 3")
	assert.Contains(t, text, "Unanswered chats: 1")
	assert.Contains(t, text, "Needs review: cust-2")
}

func TestSendReportSurfacesRelayFailure(t *testing.T) {
	agg, _, _, _ := reportFixture(apperrors.NewRelayDeliveryFailed("channel rejected message", nil))

	_, err := agg.SendReport(context.Background(), "t-1", reportWindow.start, reportWindow.end)
	assert.True(t, apperrors.IsCode(err, "RELAY_DELIVERY_FAILED"))
}
