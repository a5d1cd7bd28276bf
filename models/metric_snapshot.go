package models

import (
	"time"

	"github.com/arvand/adpilot/utils"
	"gorm.io/gorm"
)

// MetricSnapshot represents one entity's performance metrics for one UTC day.
// Rows are written by the ingestion pipeline and are read-only to the engine.
type MetricSnapshot struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EntityType  ScopeKind `gorm:"type:varchar(20);not null;uniqueIndex:uk_metric_snapshots_entity_date" json:"entity_type"`
	EntityID    uint      `gorm:"not null;uniqueIndex:uk_metric_snapshots_entity_date" json:"entity_id"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uk_metric_snapshots_entity_date" json:"date"`
	Spend       float64   `gorm:"not null;default:0" json:"spend"`
	Impressions int64     `gorm:"not null;default:0" json:"impressions"`
	Clicks      int64     `gorm:"not null;default:0" json:"clicks"`
	Conversions int64     `gorm:"not null;default:0" json:"conversions"`
	CTR         float64   `gorm:"column:ctr;not null;default:0" json:"ctr"`
	CPC         float64   `gorm:"column:cpc;not null;default:0" json:"cpc"`
	CPM         float64   `gorm:"column:cpm;not null;default:0" json:"cpm"`
	ROAS        float64   `gorm:"column:roas;not null;default:0" json:"roas"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for the model
func (MetricSnapshot) TableName() string {
	return "metric_snapshots"
}

// BeforeCreate is called before creating a new record
func (m *MetricSnapshot) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	m.Date = utils.UTCDate(m.Date)
	return nil
}

// MetricColumns maps rule metric names to snapshot columns. Metrics outside
// this set are rejected at rule creation and at query time.
var MetricColumns = map[string]string{
	"spend":       "spend",
	"impressions": "impressions",
	"clicks":      "clicks",
	"conversions": "conversions",
	"ctr":         "ctr",
	"cpc":         "cpc",
	"cpm":         "cpm",
	"roas":        "roas",
}

// ValidMetric checks if the metric name is part of the snapshot schema
func ValidMetric(name string) bool {
	_, ok := MetricColumns[name]
	return ok
}

// Headline returns the snapshot as a metrics map for audit rows
func (m *MetricSnapshot) Headline() JSONBMap {
	return JSONBMap{
		"date":        m.Date.Format("2006-01-02"),
		"spend":       m.Spend,
		"impressions": m.Impressions,
		"clicks":      m.Clicks,
		"conversions": m.Conversions,
		"ctr":         m.CTR,
		"cpc":         m.CPC,
		"cpm":         m.CPM,
		"roas":        m.ROAS,
	}
}
