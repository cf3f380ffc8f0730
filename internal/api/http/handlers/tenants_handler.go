package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-escalation/internal/api/dto"
	"github.com/spec-kit/chat-escalation/internal/service"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// TenantsHandler exposes tenant provisioning endpoints.
type TenantsHandler struct {
	tenants *service.TenantService
}

// NewTenantsHandler constructs handler.
func NewTenantsHandler(tenantService *service.TenantService) *TenantsHandler {
	return &TenantsHandler{tenants: tenantService}
}

// Create handles POST /tenants.
func (h *TenantsHandler) Create(c *fiber.Ctx) error {
	var req dto.TenantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	tenant, err := h.tenants.CreateTenant(c.Context(), tenantInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTenantResponse(tenant)})
}

// Update handles PUT /tenants/:id.
func (h *TenantsHandler) Update(c *fiber.Ctx) error {
	var req dto.TenantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	tenant, err := h.tenants.UpdateTenant(c.Context(), c.Params("id"), tenantInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantResponse(tenant)})
}

// Get handles GET /tenants/:id.
func (h *TenantsHandler) Get(c *fiber.Ctx) error {
	tenant, err := h.tenants.GetTenant(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantResponse(tenant)})
}

// List handles GET /tenants.
func (h *TenantsHandler) List(c *fiber.Ctx) error {
	tenants, err := h.tenants.ListTenants(c.Context())
	if err != nil {
		return err
	}
	out := make([]dto.TenantResponse, 0, len(tenants))
	for i := range tenants {
		out = append(out, dto.NewTenantResponse(&tenants[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

func tenantInput(req dto.TenantRequest) service.TenantInput {
	return service.TenantInput{
		Name:                    req.Name,
		ChannelAddress:          req.ChannelAddress,
		ResponseDeadlineMinutes: req.ResponseDeadlineMinutes,
		WorkingHoursStart:       req.WorkingHoursStart,
		WorkingHoursEnd:         req.WorkingHoursEnd,
		TZOffsetMinutes:         req.TZOffsetMinutes,
	}
}
