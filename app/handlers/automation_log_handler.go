package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/arvand/adpilot/app/dto"
	"github.com/arvand/adpilot/app/middleware"
	businessflow "github.com/arvand/adpilot/business_flow"
	"github.com/arvand/adpilot/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// AutomationLogHandlerInterface defines the contract for audit trail handlers
type AutomationLogHandlerInterface interface {
	ListEntries(c fiber.Ctx) error
	GetEntry(c fiber.Ctx) error
	ApproveEntry(c fiber.Ctx) error
	RejectEntry(c fiber.Ctx) error
	RollbackEntry(c fiber.Ctx) error
	ExportEntries(c fiber.Ctx) error
	PendingCount(c fiber.Ctx) error
	ListInsights(c fiber.Ctx) error
}

// AutomationLogHandler implements AutomationLogHandlerInterface
type AutomationLogHandler struct {
	auditFlow    businessflow.AuditFlow
	approvalFlow businessflow.ApprovalFlow
	rollbackFlow businessflow.RollbackFlow
	validator    *validator.Validate
}

// NewAutomationLogHandler creates a new automation log handler
func NewAutomationLogHandler(
	auditFlow businessflow.AuditFlow,
	approvalFlow businessflow.ApprovalFlow,
	rollbackFlow businessflow.RollbackFlow,
) AutomationLogHandlerInterface {
	return &AutomationLogHandler{
		auditFlow:    auditFlow,
		approvalFlow: approvalFlow,
		rollbackFlow: rollbackFlow,
		validator:    validator.New(),
	}
}

// ErrorResponse standard JSON error
func (h *AutomationLogHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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
func (h *AutomationLogHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// logFilterFromQuery builds an audit filter from query parameters
func (h *AutomationLogHandler) logFilterFromQuery(c fiber.Ctx) (models.AutomationLogFilter, error) {
	filter := models.AutomationLogFilter{
		TenantID: parseUintQuery(c, "tenant_id"),
		RuleID:   parseUintQuery(c, "rule_id"),
		EntityID: parseUintQuery(c, "entity_id"),
	}

	if v := c.Query("entity_type"); v != "" {
		kind := models.ScopeKind(v)
		if !kind.Valid() {
			return filter, fmt.Errorf("invalid entity type: %s", v)
		}
		filter.EntityType = &kind
	}
	if v := c.Query("action_type"); v != "" {
		action := models.ActionType(v)
		if !action.Valid() {
			return filter, fmt.Errorf("invalid action type: %s", v)
		}
		filter.ActionType = &action
	}
	if v := c.Query("status"); v != "" {
		status := models.AutomationLogStatus(v)
		if !status.Valid() {
			return filter, fmt.Errorf("invalid status: %s", v)
		}
		filter.Status = &status
	}
	if v := c.Query("rollbackable"); v != "" {
		rollbackable := v == "true"
		filter.Rollbackable = &rollbackable
	}
	if v := c.Query("created_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid created_after: %s", v)
		}
		filter.CreatedAfter = &t
	}
	if v := c.Query("created_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid created_before: %s", v)
		}
		filter.CreatedBefore = &t
	}

	return filter, nil
}

// ListEntries lists audit entries with filtering and pagination
// @Summary List audit entries
// @Description List automation audit entries filtered by tenant, entity, action and status
// @Tags Audit Trail
// @Produce json
// @Param tenant_id query int false "Tenant ID"
// @Param rule_id query int false "Rule ID"
// @Param entity_type query string false "Entity type"
// @Param entity_id query int false "Entity ID"
// @Param action_type query string false "Action type"
// @Param status query string false "Status"
// @Param rollbackable query bool false "Only entries that can (or cannot) be rolled back"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse} "Audit entries"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs [get]
func (h *AutomationLogHandler) ListEntries(c fiber.Ctx) error {
	filter, err := h.logFilterFromQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
	}

	page, pageSize := parsePagination(c)

	ctx, cancel := requestContext()
	defer cancel()

	entries, total, err := h.auditFlow.ListEntries(ctx, filter, page, pageSize)
	if err != nil {
		if err == businessflow.ErrInvalidPage || err == businessflow.ErrInvalidPageSize {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
		}
		log.Println("Audit listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list audit entries", "AUDIT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit entries", dto.PaginatedResponse{
		Items:    dto.NewAutomationLogResponses(entries),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetEntry loads one audit entry
// @Summary Get audit entry
// @Description Load one automation audit entry
// @Tags Audit Trail
// @Produce json
// @Param uuid path string true "Entry UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationLogResponse} "Audit entry"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Entry not found"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/{uuid} [get]
func (h *AutomationLogHandler) GetEntry(c fiber.Ctx) error {
	logUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid entry UUID", "INVALID_UUID", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	entry, err := h.auditFlow.GetEntry(ctx, logUUID)
	if err != nil {
		if businessflow.IsLogEntryNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Entry not found", "ENTRY_NOT_FOUND", nil)
		}
		log.Println("Audit lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load audit entry", "AUDIT_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Audit entry", dto.NewAutomationLogResponse(entry))
}

// ApproveEntry approves a pending entry and executes its action
// @Summary Approve entry
// @Description Approve a pending audit entry and execute its action
// @Tags Audit Trail
// @Produce json
// @Param uuid path string true "Entry UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationLogResponse} "Entry approved"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Entry not found"
// @Failure 409 {object} dto.APIResponse "Entry is not pending"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/{uuid}/approve [post]
func (h *AutomationLogHandler) ApproveEntry(c fiber.Ctx) error {
	logUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid entry UUID", "INVALID_UUID", nil)
	}

	adminID, ok := middleware.GetAdminIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	entry, err := h.approvalFlow.Approve(ctx, logUUID, adminID)
	if err != nil {
		if businessflow.IsLogEntryNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Entry not found", "ENTRY_NOT_FOUND", nil)
		}
		if businessflow.IsLogEntryNotPending(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Entry is not pending", "ENTRY_NOT_PENDING", nil)
		}
		log.Println("Approval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to approve entry", "APPROVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Entry approved", dto.NewAutomationLogResponse(entry))
}

// RejectEntry terminally declines a pending entry
// @Summary Reject entry
// @Description Reject a pending audit entry. The ad platform is never touched.
// @Tags Audit Trail
// @Accept json
// @Produce json
// @Param uuid path string true "Entry UUID"
// @Param request body dto.RejectLogEntryRequest false "Optional rejection reason"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationLogResponse} "Entry rejected"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Entry not found"
// @Failure 409 {object} dto.APIResponse "Entry is not pending"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/{uuid}/reject [post]
func (h *AutomationLogHandler) RejectEntry(c fiber.Ctx) error {
	logUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid entry UUID", "INVALID_UUID", nil)
	}

	adminID, ok := middleware.GetAdminIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.RejectLogEntryRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			var validationErrors []string
			for _, err := range err.(validator.ValidationErrors) {
				validationErrors = append(validationErrors, getValidationErrorMessage(err))
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	entry, err := h.approvalFlow.Reject(ctx, logUUID, adminID, req.Reason)
	if err != nil {
		if businessflow.IsLogEntryNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Entry not found", "ENTRY_NOT_FOUND", nil)
		}
		if businessflow.IsLogEntryNotPending(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Entry is not pending", "ENTRY_NOT_PENDING", nil)
		}
		log.Println("Rejection failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reject entry", "REJECTION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Entry rejected", dto.NewAutomationLogResponse(entry))
}

// RollbackEntry reverses an executed entry
// @Summary Roll back entry
// @Description Reverse an executed audit entry by restoring its previous state
// @Tags Audit Trail
// @Produce json
// @Param uuid path string true "Entry UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationLogResponse} "Entry rolled back"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Entry not found"
// @Failure 409 {object} dto.APIResponse "Entry cannot be rolled back"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/{uuid}/rollback [post]
func (h *AutomationLogHandler) RollbackEntry(c fiber.Ctx) error {
	logUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid entry UUID", "INVALID_UUID", nil)
	}

	adminID, ok := middleware.GetAdminIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	entry, err := h.rollbackFlow.Rollback(ctx, logUUID, adminID)
	if err != nil {
		if businessflow.IsLogEntryNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Entry not found", "ENTRY_NOT_FOUND", nil)
		}
		if businessflow.IsAlreadyRolledBack(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Entry has already been rolled back", "ALREADY_ROLLED_BACK", nil)
		}
		if businessflow.IsNotRollbackable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Entry cannot be rolled back", "NOT_ROLLBACKABLE", nil)
		}
		log.Println("Rollback failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to roll back entry", "ROLLBACK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Entry rolled back", dto.NewAutomationLogResponse(entry))
}

// ExportEntries downloads the filtered audit trail as an xlsx workbook
// @Summary Export audit entries
// @Description Download the filtered audit trail as an xlsx workbook
// @Tags Audit Trail
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param tenant_id query int false "Tenant ID"
// @Param status query string false "Status"
// @Success 200 {file} file "Workbook"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/export [get]
func (h *AutomationLogHandler) ExportEntries(c fiber.Ctx) error {
	filter, err := h.logFilterFromQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILTER", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	workbook, err := h.auditFlow.ExportXLSX(ctx, filter)
	if err != nil {
		log.Println("Audit export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export audit entries", "AUDIT_EXPORT_FAILED", nil)
	}

	filename := fmt.Sprintf("automation-log-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(workbook)
}

// PendingCount returns how many entries await approval for a tenant
// @Summary Pending approval count
// @Description Count audit entries waiting for operator approval
// @Tags Audit Trail
// @Produce json
// @Param tenant_id query int true "Tenant ID"
// @Success 200 {object} dto.APIResponse{data=object{pending=int}} "Pending count"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Security BearerAuth
// @Router /api/v1/admin/automation-logs/pending-count [get]
func (h *AutomationLogHandler) PendingCount(c fiber.Ctx) error {
	tenantID := parseUintQuery(c, "tenant_id")
	if tenantID == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "tenant_id is required", "TENANT_ID_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	count, err := h.approvalFlow.PendingCount(ctx, *tenantID)
	if err != nil {
		log.Println("Pending count failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count pending entries", "PENDING_COUNT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pending count", fiber.Map{"pending": count})
}

// ListInsights lists emitted insights with filtering and pagination
// @Summary List insights
// @Description List insights emitted by create_alert actions
// @Tags Insights
// @Produce json
// @Param tenant_id query int false "Tenant ID"
// @Param rule_id query int false "Rule ID"
// @Param severity query string false "Severity"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse} "Insights"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Security BearerAuth
// @Router /api/v1/admin/insights [get]
func (h *AutomationLogHandler) ListInsights(c fiber.Ctx) error {
	filter := models.InsightFilter{
		TenantID: parseUintQuery(c, "tenant_id"),
		RuleID:   parseUintQuery(c, "rule_id"),
		EntityID: parseUintQuery(c, "entity_id"),
	}
	if v := c.Query("severity"); v != "" {
		severity := models.InsightSeverity(v)
		if !severity.Valid() {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid severity", "INVALID_SEVERITY", nil)
		}
		filter.Severity = &severity
	}

	page, pageSize := parsePagination(c)

	ctx, cancel := requestContext()
	defer cancel()

	insights, total, err := h.auditFlow.ListInsights(ctx, filter, page, pageSize)
	if err != nil {
		if err == businessflow.ErrInvalidPage || err == businessflow.ErrInvalidPageSize {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
		}
		log.Println("Insight listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list insights", "INSIGHT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Insights", dto.PaginatedResponse{
		Items:    dto.NewInsightResponses(insights),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}
