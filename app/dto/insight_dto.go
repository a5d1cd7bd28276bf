package dto

import (
	"time"

	"github.com/arvand/adpilot/models"
)

// InsightResponse represents an insight in API responses
type InsightResponse struct {
	UUID           string    `json:"uuid"`
	TenantID       uint      `json:"tenant_id"`
	RuleID         *uint     `json:"rule_id,omitempty"`
	Severity       string    `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	EntityType     string    `json:"entity_type"`
	EntityID       uint      `json:"entity_id"`
	CorrelationIDs []string  `json:"correlation_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewInsightResponse maps an insight model to its API shape
func NewInsightResponse(insight *models.Insight) InsightResponse {
	return InsightResponse{
		UUID:           insight.UUID.String(),
		TenantID:       insight.TenantID,
		RuleID:         insight.RuleID,
		Severity:       insight.Severity.String(),
		Title:          insight.Title,
		Message:        insight.Message,
		EntityType:     insight.EntityType.String(),
		EntityID:       insight.EntityID,
		CorrelationIDs: insight.CorrelationIDs,
		CreatedAt:      insight.CreatedAt,
	}
}

// NewInsightResponses maps a slice of insight models
func NewInsightResponses(insights []*models.Insight) []InsightResponse {
	responses := make([]InsightResponse, 0, len(insights))
	for _, insight := range insights {
		responses = append(responses, NewInsightResponse(insight))
	}
	return responses
}
