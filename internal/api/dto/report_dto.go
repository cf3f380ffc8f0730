package dto

import (
	"time"

	"github.com/spec-kit/chat-escalation/internal/report"
)

// ReportRequest selects the window for an on-demand report.
type ReportRequest struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// ReportResponse carries computed statistics.
type ReportResponse struct {
	TenantID             string    `json:"tenant_id"`
	TenantName           string    `json:"tenant_name"`
	WindowStart          time.Time `json:"window_start"`
	WindowEnd            time.Time `json:"window_end"`
	StartedChats         int       `json:"started_chats"`
	ClosedChats          int       `json:"closed_chats"`
	UnansweredChats      int       `json:"unanswered_chats"`
	OverdueResponses     int       `json:"overdue_responses"`
	AnsweredChats        int       `json:"answered_chats"`
	AverageFirstResponse string    `json:"average_first_response,omitempty"`
	NeedsReviewRefs      []string  `json:"needs_review_refs,omitempty"`
	Text                 string    `json:"text"`
}

// NewReportResponse maps a computed report.
func NewReportResponse(r *report.Report) ReportResponse {
	resp := ReportResponse{
		TenantID:         r.TenantID,
		TenantName:       r.TenantName,
		WindowStart:      r.WindowStart,
		WindowEnd:        r.WindowEnd,
		StartedChats:     r.StartedChats,
		ClosedChats:      r.ClosedChats,
		UnansweredChats:  r.UnansweredChats,
		OverdueResponses: r.OverdueResponses,
		AnsweredChats:    r.AnsweredChats,
		NeedsReviewRefs:  r.NeedsReviewRefs,
		Text:             r.Format(),
	}
	if r.AnsweredChats > 0 {
		resp.AverageFirstResponse = r.AverageFirstResponse.Round(time.Second).String()
	}
	return resp
}
