package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/repository"
	"github.com/spec-kit/chat-escalation/internal/workhours"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

const (
	maxDeadlineMinutes = 30
	maxTZOffsetMinutes = 14 * 60
)

// TenantService coordinates tenant provisioning and configuration.
type TenantService struct {
	tenants repository.TenantRepository
}

// TenantDependencies bundles repositories for the tenant service.
type TenantDependencies struct {
	TenantRepo repository.TenantRepository
}

// TenantInput describes a tenant create or update payload.
type TenantInput struct {
	Name                    string
	ChannelAddress          string
	ResponseDeadlineMinutes int
	WorkingHoursStart       *string
	WorkingHoursEnd         *string
	TZOffsetMinutes         int
}

// NewTenantService constructs the service.
func NewTenantService(deps TenantDependencies) *TenantService {
	return &TenantService{tenants: deps.TenantRepo}
}

// CreateTenant provisions a tenant in the pending connection state.
func (s *TenantService) CreateTenant(ctx context.Context, input TenantInput) (*domain.Tenant, error) {
	if err := validateTenantInput(&input); err != nil {
		return nil, err
	}
	tenant := &domain.Tenant{
		Name:                    input.Name,
		ChannelAddress:          input.ChannelAddress,
		ResponseDeadlineMinutes: input.ResponseDeadlineMinutes,
		WorkingHoursStart:       input.WorkingHoursStart,
		WorkingHoursEnd:         input.WorkingHoursEnd,
		TZOffsetMinutes:         input.TZOffsetMinutes,
		Status:                  domain.StatusPending,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// UpdateTenant replaces a tenant's configuration. Connection state is
// untouched; only the session manager changes it.
func (s *TenantService) UpdateTenant(ctx context.Context, id string, input TenantInput) (*domain.Tenant, error) {
	if err := validateTenantID(id); err != nil {
		return nil, err
	}
	if err := validateTenantInput(&input); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("tenant", map[string]any{"tenant_id": id})
		}
		return nil, err
	}
	tenant.Name = input.Name
	tenant.ChannelAddress = input.ChannelAddress
	tenant.ResponseDeadlineMinutes = input.ResponseDeadlineMinutes
	tenant.WorkingHoursStart = input.WorkingHoursStart
	tenant.WorkingHoursEnd = input.WorkingHoursEnd
	tenant.TZOffsetMinutes = input.TZOffsetMinutes
	if err := s.tenants.Update(ctx, tenant); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("tenant", map[string]any{"tenant_id": id})
		}
		return nil, err
	}
	return tenant, nil
}

// GetTenant fetches one tenant.
func (s *TenantService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	if err := validateTenantID(id); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("tenant", map[string]any{"tenant_id": id})
		}
		return nil, err
	}
	return tenant, nil
}

// ListTenants returns all tenants.
func (s *TenantService) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return s.tenants.List(ctx)
}

func validateTenantInput(input *TenantInput) error {
	details := map[string]any{}
	input.Name = strings.TrimSpace(input.Name)
	input.ChannelAddress = strings.TrimSpace(input.ChannelAddress)

	if input.Name == "" {
		details["name"] = "required"
	}
	if input.ChannelAddress == "" {
		details["channel_address"] = "required"
	}
	if input.ResponseDeadlineMinutes < 0 || input.ResponseDeadlineMinutes > maxDeadlineMinutes {
		details["response_deadline_minutes"] = "must be between 0 and 30"
	}
	if input.TZOffsetMinutes < -maxTZOffsetMinutes || input.TZOffsetMinutes > maxTZOffsetMinutes {
		details["tz_offset_minutes"] = "out of range"
	}

	start := derefOrEmpty(input.WorkingHoursStart)
	end := derefOrEmpty(input.WorkingHoursEnd)
	if (start == "") != (end == "") {
		details["working_hours"] = "start and end must be set together"
	}
	if start != "" {
		if _, err := workhours.ParseClock(start); err != nil {
			details["working_hours_start"] = err.Error()
		}
	}
	if end != "" {
		if _, err := workhours.ParseClock(end); err != nil {
			details["working_hours_end"] = err.Error()
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid tenant configuration", details)
	}
	return nil
}

// validateTenantID rejects malformed ids before they reach the database,
// where a non-uuid string would fail as a query error instead of a 404.
func validateTenantID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound("tenant", map[string]any{"tenant_id": id})
	}
	return nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
