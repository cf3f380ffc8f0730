// Package report recomputes conversation statistics over a time window and
// delivers a formatted summary to the tenant's channel.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/observability"
	"github.com/spec-kit/chat-escalation/internal/relay"
	"github.com/spec-kit/chat-escalation/internal/repository"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// OverdueThreshold is the fixed first-response latency above which a reply
// counts as overdue.
const OverdueThreshold = 2 * time.Minute

// Report holds the computed statistics for one tenant and window.
type Report struct {
	TenantID             string
	TenantName           string
	WindowStart          time.Time
	WindowEnd            time.Time
	StartedChats         int
	ClosedChats          int
	UnansweredChats      int
	OverdueResponses     int
	AnsweredChats        int
	AverageFirstResponse time.Duration
	NeedsReviewRefs      []string
}

// Format renders the report as plain text for the notification relay.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report for %s (%s - %s)\n",
		r.TenantName,
		r.WindowStart.Format("2006-01-02 15:04"),
		r.WindowEnd.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Started chats: %d\n", r.StartedChats)
	fmt.Fprintf(&b, "Closed chats: %d\n", r.ClosedChats)
	fmt.Fprintf(&b, "Unanswered chats: %d\n", r.UnansweredChats)
	fmt.Fprintf(&b, "Overdue first replies (>%s): %d\n", OverdueThreshold, r.OverdueResponses)
	if r.AnsweredChats > 0 {
		fmt.Fprintf(&b, "Average first response: %s\n", r.AverageFirstResponse.Round(time.Second))
	} else {
		b.WriteString("Average first response: n/a\n")
	}
	if len(r.NeedsReviewRefs) > 0 {
		fmt.Fprintf(&b, "Needs review: %s\n", strings.Join(r.NeedsReviewRefs, ", "))
	}
	return b.String()
}

// Aggregator computes and delivers tenant reports.
type Aggregator struct {
	tenants       repository.TenantRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	relay         relay.Relay
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// AggregatorDependencies bundles collaborators for the aggregator.
type AggregatorDependencies struct {
	TenantRepo       repository.TenantRepository
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	Relay            relay.Relay
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// NewAggregator constructs the aggregator.
func NewAggregator(deps AggregatorDependencies) *Aggregator {
	return &Aggregator{
		tenants:       deps.TenantRepo,
		conversations: deps.ConversationRepo,
		messages:      deps.MessageRepo,
		relay:         deps.Relay,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
}

// GenerateReport computes statistics for conversations created inside
// [windowStart, windowEnd). Fails with INVALID_WINDOW on a non-positive
// range; storage errors propagate unchanged.
func (a *Aggregator) GenerateReport(ctx context.Context, tenantID string, windowStart, windowEnd time.Time) (*Report, error) {
	if !windowStart.Before(windowEnd) {
		return nil, apperrors.NewInvalidWindow("window start must precede window end")
	}

	tenant, err := a.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("tenant", map[string]any{"tenant_id": tenantID})
		}
		return nil, err
	}

	conversations, err := a.conversations.ListCreatedBetween(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TenantID:     tenantID,
		TenantName:   tenant.Name,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		StartedChats: len(conversations),
	}
	if len(conversations) == 0 {
		a.metrics.RecordReportGenerated()
		return report, nil
	}

	ids := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		ids = append(ids, conv.ID)
	}
	messages, err := a.messages.ListByConversations(ctx, ids, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	byConversation := make(map[string][]domain.Message, len(conversations))
	for _, msg := range messages {
		byConversation[msg.ConversationID] = append(byConversation[msg.ConversationID], msg)
	}

	var totalLatency time.Duration
	seenRefs := make(map[string]struct{})
	for _, conv := range conversations {
		if conv.Closed {
			report.ClosedChats++
		}
		if conv.NeedsReview {
			if _, seen := seenRefs[conv.CounterpartID]; !seen {
				seenRefs[conv.CounterpartID] = struct{}{}
				report.NeedsReviewRefs = append(report.NeedsReviewRefs, conv.CounterpartID)
			}
		}

		latency, answered, hasInbound := firstResponseLatency(byConversation[conv.ID])
		switch {
		case hasInbound && !answered:
			report.UnansweredChats++
		case answered:
			report.AnsweredChats++
			totalLatency += latency
			if latency > OverdueThreshold {
				report.OverdueResponses++
			}
		}
	}
	if report.AnsweredChats > 0 {
		report.AverageFirstResponse = totalLatency / time.Duration(report.AnsweredChats)
	}

	a.metrics.RecordReportGenerated()
	return report, nil
}

// SendReport generates the report and delivers it to the tenant's channel.
// Relay failures surface to the caller: reports are not re-derivable from
// timer state, so the scheduler decides whether to retry.
func (a *Aggregator) SendReport(ctx context.Context, tenantID string, windowStart, windowEnd time.Time) (*Report, error) {
	report, err := a.GenerateReport(ctx, tenantID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	tenant, err := a.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := a.relay.Send(ctx, tenant.ChannelAddress, report.Format()); err != nil {
		a.metrics.RecordRelayFailure()
		return nil, err
	}
	a.logger.Info("report delivered",
		zap.String("tenant_id", tenantID),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd))
	return report, nil
}

// firstResponseLatency inspects one conversation's messages inside the
// window, ordered by creation time. The latency is measured from the first
// inbound message to the first outbound message after it.
func firstResponseLatency(messages []domain.Message) (latency time.Duration, answered, hasInbound bool) {
	var firstInbound *domain.Message
	for i := range messages {
		msg := messages[i]
		switch msg.Direction {
		case domain.DirectionInbound:
			if firstInbound == nil {
				firstInbound = &messages[i]
				hasInbound = true
			}
		case domain.DirectionOutbound:
			if firstInbound != nil && !msg.CreatedAt.Before(firstInbound.CreatedAt) {
				return msg.CreatedAt.Sub(firstInbound.CreatedAt), true, true
			}
		}
	}
	return 0, false, hasInbound
}
