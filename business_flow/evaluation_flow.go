package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arvand/adpilot/app/services"
	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
)

// aggregateCacheTTL bounds how long a windowed aggregate is reused. The
// cache key already contains the UTC day, so entries never leak across
// window boundaries.
const aggregateCacheTTL = 30 * time.Minute

// EvaluationSummary reports what one tenant evaluation pass did
type EvaluationSummary struct {
	TenantID        uint `json:"tenant_id"`
	RulesEvaluated  int  `json:"rules_evaluated"`
	Matched         int  `json:"matched"`
	Executed        int  `json:"executed"`
	PendingApproval int  `json:"pending_approval"`
	Failed          int  `json:"failed"`
}

// EvaluationFlow evaluates a tenant's rules against windowed metrics
type EvaluationFlow interface {
	EvaluateTenant(ctx context.Context, tenantID uint) (*EvaluationSummary, error)
}

// EvaluationFlowImpl implements EvaluationFlow
type EvaluationFlowImpl struct {
	ruleRepo   repository.AutomationRuleRepository
	entityRepo repository.AdEntityRepository
	metricRepo repository.MetricSnapshotRepository
	cache      services.CacheService
	executor   ActionExecutor
	logger     *log.Logger
}

// NewEvaluationFlow creates a new evaluation flow
func NewEvaluationFlow(
	ruleRepo repository.AutomationRuleRepository,
	entityRepo repository.AdEntityRepository,
	metricRepo repository.MetricSnapshotRepository,
	cache services.CacheService,
	executor ActionExecutor,
	logger *log.Logger,
) EvaluationFlow {
	return &EvaluationFlowImpl{
		ruleRepo:   ruleRepo,
		entityRepo: entityRepo,
		metricRepo: metricRepo,
		cache:      cache,
		executor:   executor,
		logger:     logger,
	}
}

// EvaluateTenant runs one evaluation pass for the tenant. Rules are
// evaluated highest priority first; a single entity failure never aborts
// the pass.
func (f *EvaluationFlowImpl) EvaluateTenant(ctx context.Context, tenantID uint) (*EvaluationSummary, error) {
	rules, err := f.ruleRepo.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("EVALUATION_LIST_RULES_FAILED", "failed to list rules", err)
	}

	now := utils.UTCNow()
	summary := &EvaluationSummary{TenantID: tenantID}

	for _, rule := range rules {
		if !rule.CanExecute(now) {
			continue
		}
		summary.RulesEvaluated++

		targets, err := f.entityRepo.ListTargets(ctx, tenantID, rule.ScopeKind, rule.AccountFilterID, rule.TargetEntityID)
		if err != nil {
			summary.Failed++
			f.logger.Printf("[EVAL] tenant=%d rule=%d failed to resolve targets: %v", tenantID, rule.ID, err)
			continue
		}

		for _, target := range targets {
			matched, err := f.conditionMatches(ctx, rule, target)
			if err != nil {
				summary.Failed++
				f.logger.Printf("[EVAL] tenant=%d rule=%d entity=%s/%d aggregation failed: %v",
					tenantID, rule.ID, target.TargetKind(), target.TargetID(), err)
				continue
			}
			if !matched {
				continue
			}
			summary.Matched++

			entry, err := f.executor.ExecuteForMatch(ctx, rule, target)
			if err != nil {
				summary.Failed++
				f.logger.Printf("[EVAL] tenant=%d rule=%d entity=%s/%d execution error: %v",
					tenantID, rule.ID, target.TargetKind(), target.TargetID(), err)
				continue
			}

			switch entry.Status {
			case models.AutomationLogStatusExecuted:
				summary.Executed++
			case models.AutomationLogStatusPending:
				summary.PendingApproval++
			case models.AutomationLogStatusFailed:
				summary.Failed++
			}

			// An execution may have started the cooldown or hit the daily
			// cap; remaining entities wait for the next pass.
			if !rule.CanExecute(now) {
				break
			}
		}
	}

	return summary, nil
}

// conditionMatches aggregates the rule's metric over its window for the
// target and applies the comparison. Windows without samples match only
// when the aggregation defines an empty value (sum and avg are zero).
func (f *EvaluationFlowImpl) conditionMatches(ctx context.Context, rule *models.AutomationRule, target models.AutomationTarget) (bool, error) {
	cond := rule.Condition
	if !models.ValidMetric(cond.Metric) {
		return false, fmt.Errorf("unknown metric: %s", cond.Metric)
	}

	value, samples, err := f.aggregate(ctx, rule, target)
	if err != nil {
		return false, err
	}

	if samples == 0 && !cond.Aggregation.ZeroOnEmpty() {
		return false, nil
	}

	return cond.Operator.Compare(value, cond.Threshold), nil
}

// aggregate reads the windowed aggregate through the cache
func (f *EvaluationFlowImpl) aggregate(ctx context.Context, rule *models.AutomationRule, target models.AutomationTarget) (float64, int64, error) {
	cond := rule.Condition
	day := utils.UTCDate(utils.UTCNow())
	key := services.AggregateCacheKey(target.TargetKind(), target.TargetID(), cond.Metric, cond.DurationDays, cond.Aggregation, day)

	if cached, err := f.cache.GetAggregate(ctx, key); err == nil && cached != nil {
		return cached.Value, cached.Samples, nil
	}

	value, samples, err := f.metricRepo.Aggregate(ctx, target.TargetKind(), target.TargetID(), cond.Metric, cond.DurationDays, cond.Aggregation)
	if err != nil {
		return 0, 0, err
	}

	if err := f.cache.SetAggregate(ctx, key, value, samples, aggregateCacheTTL); err != nil {
		f.logger.Printf("[EVAL] failed to cache aggregate %s: %v", key, err)
	}

	return value, samples, nil
}
