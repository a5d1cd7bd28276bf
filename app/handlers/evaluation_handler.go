package handlers

import (
	"log"

	"github.com/arvand/adpilot/app/dto"
	businessflow "github.com/arvand/adpilot/business_flow"
	"github.com/gofiber/fiber/v3"
)

// EvaluationHandlerInterface defines the contract for on-demand evaluation
type EvaluationHandlerInterface interface {
	EvaluateTenant(c fiber.Ctx) error
}

// EvaluationHandler implements EvaluationHandlerInterface
type EvaluationHandler struct {
	flow businessflow.EvaluationFlow
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(flow businessflow.EvaluationFlow) EvaluationHandlerInterface {
	return &EvaluationHandler{flow: flow}
}

// ErrorResponse standard JSON error
func (h *EvaluationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// SuccessResponse standard JSON success
func (h *EvaluationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// EvaluateTenant runs one evaluation pass for a tenant on demand
// @Summary Evaluate tenant
// @Description Run one rule evaluation pass for the tenant outside the scheduler
// @Tags Evaluation
// @Produce json
// @Param tenant_id query int true "Tenant ID"
// @Success 200 {object} dto.APIResponse{data=businessflow.EvaluationSummary} "Evaluation summary"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 500 {object} dto.APIResponse "Evaluation failed"
// @Security BearerAuth
// @Router /api/v1/admin/evaluations/run [post]
func (h *EvaluationHandler) EvaluateTenant(c fiber.Ctx) error {
	tenantID := parseUintQuery(c, "tenant_id")
	if tenantID == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "tenant_id is required", "TENANT_ID_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	summary, err := h.flow.EvaluateTenant(ctx, *tenantID)
	if err != nil {
		log.Println("On-demand evaluation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Evaluation failed", "EVALUATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Evaluation summary", summary)
}
