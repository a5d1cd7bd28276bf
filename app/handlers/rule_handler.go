package handlers

import (
	"log"

	"github.com/arvand/adpilot/app/dto"
	businessflow "github.com/arvand/adpilot/business_flow"
	"github.com/arvand/adpilot/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RuleHandlerInterface defines the contract for automation rule handlers
type RuleHandlerInterface interface {
	CreateRule(c fiber.Ctx) error
	GetRule(c fiber.Ctx) error
	ListRules(c fiber.Ctx) error
	UpdateRule(c fiber.Ctx) error
	DeactivateRule(c fiber.Ctx) error
}

// RuleHandler implements RuleHandlerInterface
type RuleHandler struct {
	flow      businessflow.RuleFlow
	validator *validator.Validate
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(flow businessflow.RuleFlow) RuleHandlerInterface {
	return &RuleHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// ErrorResponse standard JSON error
func (h *RuleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
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
func (h *RuleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateRule creates a new automation rule
// @Summary Create rule
// @Description Create a new automation rule for a tenant
// @Tags Automation Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateRuleRequest true "Rule definition"
// @Success 201 {object} dto.APIResponse{data=dto.RuleResponse} "Rule created"
// @Failure 400 {object} dto.APIResponse "Invalid rule definition"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/admin/rules [post]
func (h *RuleHandler) CreateRule(c fiber.Ctx) error {
	var req dto.CreateRuleRequest
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

	ctx, cancel := requestContext()
	defer cancel()

	rule, err := h.flow.CreateRule(ctx, req.ToModel())
	if err != nil {
		if businessflow.IsRuleValidation(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "RULE_VALIDATION_FAILED", nil)
		}
		log.Println("Rule creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create rule", "RULE_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Rule created", dto.NewRuleResponse(rule))
}

// GetRule loads one rule
// @Summary Get rule
// @Description Load one automation rule scoped to a tenant
// @Tags Automation Rules
// @Produce json
// @Param uuid path string true "Rule UUID"
// @Param tenant_id query int true "Tenant ID"
// @Success 200 {object} dto.APIResponse{data=dto.RuleResponse} "Rule"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Security BearerAuth
// @Router /api/v1/admin/rules/{uuid} [get]
func (h *RuleHandler) GetRule(c fiber.Ctx) error {
	ruleUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule UUID", "INVALID_UUID", nil)
	}

	tenantID := parseUintQuery(c, "tenant_id")
	if tenantID == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "tenant_id is required", "TENANT_ID_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	rule, err := h.flow.GetRule(ctx, *tenantID, ruleUUID)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}
		log.Println("Rule lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load rule", "RULE_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule", dto.NewRuleResponse(rule))
}

// ListRules lists rules with filtering and pagination
// @Summary List rules
// @Description List automation rules filtered by tenant, scope and activity
// @Tags Automation Rules
// @Produce json
// @Param tenant_id query int false "Tenant ID"
// @Param scope_kind query string false "Scope kind"
// @Param is_active query bool false "Only active or inactive rules"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse} "Rules"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Security BearerAuth
// @Router /api/v1/admin/rules [get]
func (h *RuleHandler) ListRules(c fiber.Ctx) error {
	filter := models.AutomationRuleFilter{
		TenantID: parseUintQuery(c, "tenant_id"),
	}
	if v := c.Query("scope_kind"); v != "" {
		scope := models.ScopeKind(v)
		if !scope.Valid() {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid scope kind", "INVALID_SCOPE_KIND", nil)
		}
		filter.ScopeKind = &scope
	}
	if v := c.Query("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	page, pageSize := parsePagination(c)

	ctx, cancel := requestContext()
	defer cancel()

	rules, total, err := h.flow.ListRules(ctx, filter, page, pageSize)
	if err != nil {
		if businessflow.IsRuleValidation(err) || err == businessflow.ErrInvalidPage || err == businessflow.ErrInvalidPageSize {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_PAGINATION", nil)
		}
		log.Println("Rule listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list rules", "RULE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rules", dto.PaginatedResponse{
		Items:    dto.NewRuleResponses(rules),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// UpdateRule applies a partial update to a rule
// @Summary Update rule
// @Description Apply a partial update to an automation rule
// @Tags Automation Rules
// @Accept json
// @Produce json
// @Param uuid path string true "Rule UUID"
// @Param tenant_id query int true "Tenant ID"
// @Param request body dto.UpdateRuleRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.RuleResponse} "Rule updated"
// @Failure 400 {object} dto.APIResponse "Invalid update"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Security BearerAuth
// @Router /api/v1/admin/rules/{uuid} [patch]
func (h *RuleHandler) UpdateRule(c fiber.Ctx) error {
	ruleUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule UUID", "INVALID_UUID", nil)
	}

	tenantID := parseUintQuery(c, "tenant_id")
	if tenantID == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "tenant_id is required", "TENANT_ID_REQUIRED", nil)
	}

	var req dto.UpdateRuleRequest
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

	update := businessflow.RuleUpdate{
		Name:                req.Name,
		CooldownHours:       req.CooldownHours,
		MaxExecutionsPerDay: req.MaxExecutionsPerDay,
		Priority:            req.Priority,
		IsActive:            req.IsActive,
		RequiresApproval:    req.RequiresApproval,
	}
	if req.Condition != nil {
		update.Condition = &models.RuleCondition{
			Metric:       req.Condition.Metric,
			Operator:     models.ConditionOperator(req.Condition.Operator),
			Threshold:    req.Condition.Value,
			DurationDays: req.Condition.DurationDays,
			Aggregation:  models.AggregationKind(req.Condition.Aggregation),
		}
	}
	if req.Action != nil {
		update.Action = &models.ActionSpec{
			Type:   models.ActionType(req.Action.Type),
			Params: req.Action.Params,
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	rule, err := h.flow.UpdateRule(ctx, *tenantID, ruleUUID, update)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}
		if businessflow.IsRuleValidation(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "RULE_VALIDATION_FAILED", nil)
		}
		log.Println("Rule update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update rule", "RULE_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule updated", dto.NewRuleResponse(rule))
}

// DeactivateRule turns a rule off
// @Summary Deactivate rule
// @Description Deactivate an automation rule. Rules are never deleted.
// @Tags Automation Rules
// @Produce json
// @Param uuid path string true "Rule UUID"
// @Param tenant_id query int true "Tenant ID"
// @Success 200 {object} dto.APIResponse{data=dto.RuleResponse} "Rule deactivated"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Security BearerAuth
// @Router /api/v1/admin/rules/{uuid} [delete]
func (h *RuleHandler) DeactivateRule(c fiber.Ctx) error {
	ruleUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule UUID", "INVALID_UUID", nil)
	}

	tenantID := parseUintQuery(c, "tenant_id")
	if tenantID == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "tenant_id is required", "TENANT_ID_REQUIRED", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	rule, err := h.flow.DeactivateRule(ctx, *tenantID, ruleUUID)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Rule not found", "RULE_NOT_FOUND", nil)
		}
		log.Println("Rule deactivation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate rule", "RULE_DEACTIVATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rule deactivated", dto.NewRuleResponse(rule))
}
