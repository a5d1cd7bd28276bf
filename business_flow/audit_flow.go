package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// exportRowLimit bounds xlsx exports
const exportRowLimit = 10000

// AuditFlow queries the automation audit trail and the emitted insights
type AuditFlow interface {
	ListEntries(ctx context.Context, filter models.AutomationLogFilter, page, pageSize int) ([]*models.AutomationLog, int64, error)
	GetEntry(ctx context.Context, logUUID uuid.UUID) (*models.AutomationLog, error)
	// ExportXLSX renders the filtered audit trail as an xlsx workbook
	ExportXLSX(ctx context.Context, filter models.AutomationLogFilter) ([]byte, error)
	ListInsights(ctx context.Context, filter models.InsightFilter, page, pageSize int) ([]*models.Insight, int64, error)
}

// AuditFlowImpl implements AuditFlow
type AuditFlowImpl struct {
	logRepo     repository.AutomationLogRepository
	insightRepo repository.InsightRepository
}

// NewAuditFlow creates a new audit flow
func NewAuditFlow(logRepo repository.AutomationLogRepository, insightRepo repository.InsightRepository) AuditFlow {
	return &AuditFlowImpl{
		logRepo:     logRepo,
		insightRepo: insightRepo,
	}
}

// ListEntries returns a page of audit entries with the total count
func (f *AuditFlowImpl) ListEntries(ctx context.Context, filter models.AutomationLogFilter, page, pageSize int) ([]*models.AutomationLog, int64, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, 0, ErrInvalidPageSize
	}

	total, err := f.logRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, NewBusinessError("AUDIT_COUNT_FAILED", "failed to count audit entries", err)
	}

	entries, err := f.logRepo.ByFilter(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, NewBusinessError("AUDIT_LIST_FAILED", "failed to list audit entries", err)
	}

	return entries, total, nil
}

// GetEntry loads one audit entry
func (f *AuditFlowImpl) GetEntry(ctx context.Context, logUUID uuid.UUID) (*models.AutomationLog, error) {
	entry, err := f.logRepo.ByUUID(ctx, logUUID)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LOOKUP_FAILED", "failed to load audit entry", err)
	}
	if entry == nil {
		return nil, ErrLogEntryNotFound
	}

	return entry, nil
}

// ExportXLSX renders the filtered audit trail as an xlsx workbook
func (f *AuditFlowImpl) ExportXLSX(ctx context.Context, filter models.AutomationLogFilter) ([]byte, error) {
	entries, err := f.logRepo.ByFilter(ctx, filter, exportRowLimit, 0)
	if err != nil {
		return nil, NewBusinessError("AUDIT_EXPORT_FAILED", "failed to list audit entries", err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Automation Log"
	if err := workbook.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []string{
		"UUID", "Tenant", "Rule", "Entity Type", "Entity", "External ID",
		"Action", "Status", "Previous State", "New State", "Error",
		"Created At", "Executed At", "Rolled Back At",
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := workbook.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, entry := range entries {
		values := []any{
			entry.UUID.String(),
			entry.TenantID,
			entry.RuleName,
			entry.EntityType.String(),
			entry.EntityName,
			entry.EntityExternalID,
			entry.ActionType.String(),
			entry.Status.String(),
			jsonCell(entry.PreviousState),
			jsonCell(entry.NewState),
			strCell(entry.ErrorMessage),
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			timeCell(entry.ExecutedAt),
			timeCell(entry.RolledBackAt),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := workbook.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	buffer, err := workbook.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	return buffer.Bytes(), nil
}

// ListInsights returns a page of insights with the total count
func (f *AuditFlowImpl) ListInsights(ctx context.Context, filter models.InsightFilter, page, pageSize int) ([]*models.Insight, int64, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, 0, ErrInvalidPageSize
	}

	total, err := f.insightRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, NewBusinessError("INSIGHT_COUNT_FAILED", "failed to count insights", err)
	}

	insights, err := f.insightRepo.ByFilter(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, NewBusinessError("INSIGHT_LIST_FAILED", "failed to list insights", err)
	}

	return insights, total, nil
}

func jsonCell(state models.JSONBMap) string {
	if len(state) == 0 {
		return ""
	}
	data, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	return string(data)
}

func strCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
