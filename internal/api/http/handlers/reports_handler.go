package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-escalation/internal/api/dto"
	"github.com/spec-kit/chat-escalation/internal/report"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// ReportsHandler exposes on-demand report generation.
type ReportsHandler struct {
	aggregator *report.Aggregator
}

// NewReportsHandler constructs handler.
func NewReportsHandler(aggregator *report.Aggregator) *ReportsHandler {
	return &ReportsHandler{aggregator: aggregator}
}

// Preview handles POST /tenants/:id/reports/preview. The report is computed
// but not delivered.
func (h *ReportsHandler) Preview(c *fiber.Ctx) error {
	req, err := parseReportRequest(c)
	if err != nil {
		return err
	}
	result, err := h.aggregator.GenerateReport(c.Context(), c.Params("id"), req.WindowStart, req.WindowEnd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(result)})
}

// Send handles POST /tenants/:id/reports/send. The report is computed and
// delivered to the tenant's channel.
func (h *ReportsHandler) Send(c *fiber.Ctx) error {
	req, err := parseReportRequest(c)
	if err != nil {
		return err
	}
	result, err := h.aggregator.SendReport(c.Context(), c.Params("id"), req.WindowStart, req.WindowEnd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(result)})
}

func parseReportRequest(c *fiber.Ctx) (dto.ReportRequest, error) {
	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.WindowStart.IsZero() || req.WindowEnd.IsZero() {
		return req, apperrors.NewValidationError("window_start and window_end required", nil)
	}
	return req, nil
}
