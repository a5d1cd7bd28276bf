package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for admin refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Automation engine constants
const (
	// ComparisonEpsilon is the tolerance used for =/!= metric comparisons
	ComparisonEpsilon = 1e-4

	// DefaultBudgetIncreasePercent is applied when increase_budget has no percent param
	DefaultBudgetIncreasePercent = 20.0

	// DefaultBudgetDecreasePercent is applied when decrease_budget has no percent param
	DefaultBudgetDecreasePercent = 10.0

	// DefaultPendingApprovalTTL bounds how long a pending action waits for a decision
	DefaultPendingApprovalTTL = 72 * time.Hour

	// MaxConditionWindowDays bounds the trailing aggregation window of a rule
	MaxConditionWindowDays = 90
)
