// Package scheduler runs the periodic rule evaluation loop
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/arvand/adpilot/app/services"
	businessflow "github.com/arvand/adpilot/business_flow"
	"github.com/arvand/adpilot/config"
	"github.com/arvand/adpilot/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	evaluationRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adpilot_scheduler_evaluation_runs_total",
		Help: "Number of completed scheduler evaluation passes.",
	})
	tenantEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpilot_scheduler_tenant_evaluations_total",
		Help: "Number of per-tenant evaluations by result.",
	}, []string{"result"})
	ruleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpilot_scheduler_rule_outcomes_total",
		Help: "Number of rule matches by outcome.",
	}, []string{"outcome"})
	expiredPendings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adpilot_scheduler_expired_pending_total",
		Help: "Number of pending approvals expired by the TTL sweep.",
	})
)

// AutomationScheduler periodically evaluates every tenant's active rules.
// Per-tenant redis locks keep concurrent instances from evaluating the same
// tenant twice.
type AutomationScheduler struct {
	ruleRepo   repository.AutomationRuleRepository
	evaluation businessflow.EvaluationFlow
	approval   businessflow.ApprovalFlow
	cache      services.CacheService
	cfg        config.SchedulerConfig
	logger     *log.Logger
}

// NewAutomationScheduler creates a new automation scheduler
func NewAutomationScheduler(
	ruleRepo repository.AutomationRuleRepository,
	evaluation businessflow.EvaluationFlow,
	approval businessflow.ApprovalFlow,
	cache services.CacheService,
	cfg config.SchedulerConfig,
) *AutomationScheduler {
	return &AutomationScheduler{
		ruleRepo:   ruleRepo,
		evaluation: evaluation,
		approval:   approval,
		cache:      cache,
		cfg:        cfg,
		logger:     initSchedulerLogger(cfg.LogDir),
	}
}

// initSchedulerLogger writes scheduler output to stdout and a rotating file
func initSchedulerLogger(logDir string) *log.Logger {
	if logDir == "" {
		logDir = "data"
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "automation_scheduler.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}

	mw := io.MultiWriter(os.Stdout, rotating)
	return log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the evaluation loop and returns a cancel function
func (s *AutomationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Printf("scheduler: started, interval=%s", s.cfg.Interval)
		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.logger.Printf("scheduler: stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// runOnce performs one full pass: every tenant with active rules gets
// evaluated under its run lock, then stale pending approvals are expired.
func (s *AutomationScheduler) runOnce(ctx context.Context) {
	tenantIDs, err := s.ruleRepo.ActiveTenantIDs(ctx)
	if err != nil {
		s.logger.Printf("scheduler: failed to list tenants: %v", err)
		return
	}

	for _, tenantID := range tenantIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.evaluateTenant(ctx, tenantID)
	}

	s.expireStalePendings(ctx)
	evaluationRuns.Inc()
}

// evaluateTenant runs one tenant evaluation under the tenant's run lock
func (s *AutomationScheduler) evaluateTenant(ctx context.Context, tenantID uint) {
	locked, err := s.cache.TryAcquireRunLock(ctx, tenantID, s.cfg.RunLockTTL)
	if err != nil {
		s.logger.Printf("scheduler: tenant=%d run lock error: %v", tenantID, err)
		tenantEvaluations.WithLabelValues("lock_error").Inc()
		return
	}
	if !locked {
		// Another instance is already evaluating this tenant.
		tenantEvaluations.WithLabelValues("skipped").Inc()
		return
	}
	defer func() {
		if err := s.cache.ReleaseRunLock(ctx, tenantID); err != nil {
			s.logger.Printf("scheduler: tenant=%d failed to release run lock: %v", tenantID, err)
		}
	}()

	summary, err := s.evaluation.EvaluateTenant(ctx, tenantID)
	if err != nil {
		s.logger.Printf("scheduler: tenant=%d evaluation failed: %v", tenantID, err)
		tenantEvaluations.WithLabelValues("error").Inc()
		return
	}

	tenantEvaluations.WithLabelValues("ok").Inc()
	ruleOutcomes.WithLabelValues("executed").Add(float64(summary.Executed))
	ruleOutcomes.WithLabelValues("pending_approval").Add(float64(summary.PendingApproval))
	ruleOutcomes.WithLabelValues("failed").Add(float64(summary.Failed))

	if summary.RulesEvaluated > 0 {
		s.logger.Printf("scheduler: tenant=%d rules=%d matched=%d executed=%d pending=%d failed=%d",
			tenantID, summary.RulesEvaluated, summary.Matched, summary.Executed, summary.PendingApproval, summary.Failed)
	}
}

// expireStalePendings sweeps pending approvals past the TTL
func (s *AutomationScheduler) expireStalePendings(ctx context.Context) {
	expired, err := s.approval.ExpirePending(ctx, s.cfg.PendingApprovalTTL)
	if err != nil {
		s.logger.Printf("scheduler: pending expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		expiredPendings.Add(float64(expired))
		s.logger.Printf("scheduler: expired %d stale pending approvals", expired)
	}
}
