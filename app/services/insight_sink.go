package services

import (
	"context"
	"fmt"
	"log"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
)

// InsightSink persists alerts emitted by create_alert actions
type InsightSink interface {
	CreateAlert(ctx context.Context, insight *models.Insight) error
}

// InsightSinkImpl implements InsightSink on top of the insight repository
type InsightSinkImpl struct {
	insightRepo repository.InsightRepository
}

// NewInsightSink creates a new insight sink
func NewInsightSink(insightRepo repository.InsightRepository) InsightSink {
	return &InsightSinkImpl{insightRepo: insightRepo}
}

// CreateAlert persists the insight row
func (s *InsightSinkImpl) CreateAlert(ctx context.Context, insight *models.Insight) error {
	if insight.Title == "" {
		return fmt.Errorf("insight title is required")
	}
	if !insight.Severity.Valid() {
		insight.Severity = models.InsightSeverityInfo
	}

	if err := s.insightRepo.Save(ctx, insight); err != nil {
		return fmt.Errorf("failed to persist insight: %w", err)
	}

	log.Printf("[INSIGHT] tenant=%d severity=%s entity=%s/%d title=%q",
		insight.TenantID, insight.Severity, insight.EntityType, insight.EntityID, insight.Title)

	return nil
}
