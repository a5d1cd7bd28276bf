package dto

import (
	"time"

	"github.com/arvand/adpilot/models"
)

// RejectLogEntryRequest carries the optional reason for a rejection
type RejectLogEntryRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// AutomationLogResponse represents an audit entry in API responses
type AutomationLogResponse struct {
	UUID             string          `json:"uuid"`
	TenantID         uint            `json:"tenant_id"`
	RuleID           uint            `json:"rule_id"`
	RuleName         string          `json:"rule_name"`
	EntityType       string          `json:"entity_type"`
	EntityID         uint            `json:"entity_id"`
	EntityName       string          `json:"entity_name,omitempty"`
	EntityExternalID string          `json:"entity_external_id,omitempty"`
	ActionType       string          `json:"action_type"`
	ActionParams     models.JSONBMap `json:"action_params,omitempty"`
	PreviousState    models.JSONBMap `json:"previous_state,omitempty"`
	NewState         models.JSONBMap `json:"new_state,omitempty"`
	MetricsSnapshot  models.JSONBMap `json:"metrics_snapshot,omitempty"`
	Status           string          `json:"status"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	CanRollback      bool            `json:"can_rollback"`
	Rollbackable     bool            `json:"rollbackable"`
	ApprovedBy       *uint           `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectedBy       *uint           `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
	ExecutedAt       *time.Time      `json:"executed_at,omitempty"`
	RolledBackAt     *time.Time      `json:"rolled_back_at,omitempty"`
	RolledBackBy     *uint           `json:"rolled_back_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewAutomationLogResponse maps an audit entry model to its API shape
func NewAutomationLogResponse(entry *models.AutomationLog) AutomationLogResponse {
	return AutomationLogResponse{
		UUID:             entry.UUID.String(),
		TenantID:         entry.TenantID,
		RuleID:           entry.RuleID,
		RuleName:         entry.RuleName,
		EntityType:       entry.EntityType.String(),
		EntityID:         entry.EntityID,
		EntityName:       entry.EntityName,
		EntityExternalID: entry.EntityExternalID,
		ActionType:       entry.ActionType.String(),
		ActionParams:     entry.ActionParams,
		PreviousState:    entry.PreviousState,
		NewState:         entry.NewState,
		MetricsSnapshot:  entry.MetricsSnapshot,
		Status:           entry.Status.String(),
		ErrorMessage:     entry.ErrorMessage,
		CanRollback:      entry.CanRollback,
		Rollbackable:     entry.IsRollbackable(),
		ApprovedBy:       entry.ApprovedBy,
		ApprovedAt:       entry.ApprovedAt,
		RejectedBy:       entry.RejectedBy,
		RejectedAt:       entry.RejectedAt,
		ExecutedAt:       entry.ExecutedAt,
		RolledBackAt:     entry.RolledBackAt,
		RolledBackBy:     entry.RolledBackBy,
		CreatedAt:        entry.CreatedAt,
	}
}

// NewAutomationLogResponses maps a slice of audit entry models
func NewAutomationLogResponses(entries []*models.AutomationLog) []AutomationLogResponse {
	responses := make([]AutomationLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewAutomationLogResponse(entry))
	}
	return responses
}
