package dto

import (
	"time"

	"github.com/spec-kit/chat-escalation/internal/domain"
)

// TenantRequest payload for create and update.
type TenantRequest struct {
	Name                    string  `json:"name"`
	ChannelAddress          string  `json:"channel_address"`
	ResponseDeadlineMinutes int     `json:"response_deadline_minutes"`
	WorkingHoursStart       *string `json:"working_hours_start"`
	WorkingHoursEnd         *string `json:"working_hours_end"`
	TZOffsetMinutes         int     `json:"tz_offset_minutes"`
}

// TenantResponse represents a tenant with its connection state.
type TenantResponse struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	ChannelAddress          string    `json:"channel_address"`
	ResponseDeadlineMinutes int       `json:"response_deadline_minutes"`
	WorkingHoursStart       *string   `json:"working_hours_start"`
	WorkingHoursEnd         *string   `json:"working_hours_end"`
	TZOffsetMinutes         int       `json:"tz_offset_minutes"`
	Status                  string    `json:"status"`
	StatusMessage           *string   `json:"status_message"`
	StatusChangedAt         time.Time `json:"status_changed_at"`
	Connected               bool      `json:"connected"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// NewTenantResponse maps a domain tenant.
func NewTenantResponse(tenant *domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:                      tenant.ID,
		Name:                    tenant.Name,
		ChannelAddress:          tenant.ChannelAddress,
		ResponseDeadlineMinutes: tenant.ResponseDeadlineMinutes,
		WorkingHoursStart:       tenant.WorkingHoursStart,
		WorkingHoursEnd:         tenant.WorkingHoursEnd,
		TZOffsetMinutes:         tenant.TZOffsetMinutes,
		Status:                  string(tenant.Status),
		StatusMessage:           tenant.StatusMessage,
		StatusChangedAt:         tenant.StatusChangedAt,
		Connected:               tenant.Connected,
		CreatedAt:               tenant.CreatedAt,
		UpdatedAt:               tenant.UpdatedAt,
	}
}
