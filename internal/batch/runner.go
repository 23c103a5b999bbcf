// Package batch orchestrates SOL recalculation across a loan portfolio.
//
// The runner is deliberately thin: all legal logic lives in the calculator.
// It maps the calculator over loans with a bounded worker pool, upserts
// results, and aggregates per-loan outcomes into a summary. A single bad
// loan or rule can never abort a batch.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/sol"
)

// Runner executes batch SOL recalculation runs.
type Runner struct {
	repo       domain.Repository
	ruleStore  domain.RuleStore
	calculator *sol.Calculator
	bus        domain.EventBus
	maxWorkers int
}

// NewRunner creates a batch runner. The bus is optional; when present the
// runner publishes batch lifecycle and provisional-result events.
func NewRunner(repo domain.Repository, ruleStore domain.RuleStore, calculator *sol.Calculator, bus domain.EventBus, maxWorkers int) *Runner {
	if maxWorkers <= 0 {
		maxWorkers = 16
	}
	return &Runner{
		repo:       repo,
		ruleStore:  ruleStore,
		calculator: calculator,
		bus:        bus,
		maxWorkers: maxWorkers,
	}
}

type loanOutcome struct {
	result *domain.SOLCalculationResult
	skip   string
}

// Run recalculates SOL for every loan of the tenant and returns the
// aggregate summary. Cancellation is honored between loans, never inside a
// single loan's computation.
func (r *Runner) Run(ctx context.Context, tenantID string) (*domain.BatchSummary, error) {
	start := time.Now()

	summary := &domain.BatchSummary{
		RunID:        uuid.New().String(),
		TenantID:     tenantID,
		Skipped:      make(map[string]int),
		Distribution: make(map[domain.RiskLevel]int),
		StartedAt:    start.UTC(),
	}

	loans, err := r.repo.ListLoanStates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	summary.TotalLoans = len(loans)

	r.publish(ctx, tenantID, domain.TopicBatchStarted, summary)

	slog.Info("batch run started",
		"run_id", summary.RunID,
		"tenant_id", tenantID,
		"loans", len(loans),
	)

	outcomes := make([]loanOutcome, len(loans))
	sem := make(chan struct{}, r.maxWorkers)
	var wg sync.WaitGroup

	for i, loan := range loans {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(idx int, loan *domain.LoanLegalState) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			outcomes[idx] = r.processLoan(ctx, tenantID, loan)
		}(i, loan)
	}

	wg.Wait()

	for _, outcome := range outcomes {
		if outcome.skip != "" {
			summary.Skipped[outcome.skip]++
			continue
		}
		if outcome.result == nil {
			continue
		}
		summary.Computed++
		summary.Distribution[outcome.result.RiskLevel]++
		if outcome.result.Provisional {
			summary.Provisional++
		}
	}

	summary.ElapsedMs = time.Since(start).Milliseconds()

	r.publish(ctx, tenantID, domain.TopicBatchCompleted, summary)

	slog.Info("batch run completed",
		"run_id", summary.RunID,
		"tenant_id", tenantID,
		"computed", summary.Computed,
		"skipped", summary.TotalLoans-summary.Computed,
		"provisional", summary.Provisional,
		"elapsed_ms", summary.ElapsedMs,
	)

	return summary, nil
}

// processLoan computes and persists one loan's result. Every failure maps to
// a skip reason; nothing here is fatal to the batch.
func (r *Runner) processLoan(ctx context.Context, tenantID string, loan *domain.LoanLegalState) loanOutcome {
	rule, err := r.ruleStore.Get(ctx, tenantID, loan.JurisdictionCode)
	if err != nil {
		slog.Warn("loan skipped: jurisdiction rule unavailable",
			"loan_id", loan.LoanID,
			"jurisdiction", loan.JurisdictionCode,
			"error", err,
		)
		return loanOutcome{skip: domain.SkipJurisdictionNotFound}
	}

	result, err := r.calculator.Calculate(loan, rule)
	if err != nil {
		return loanOutcome{skip: skipReason(err)}
	}

	if err := r.repo.UpsertSOLResult(ctx, tenantID, result); err != nil {
		slog.Error("failed to persist sol result",
			"loan_id", loan.LoanID,
			"error", err,
		)
		return loanOutcome{skip: domain.SkipPersistFailed}
	}

	if result.Provisional {
		r.publish(ctx, tenantID, domain.TopicProvisionalFound, result)
	}

	return loanOutcome{result: result}
}

// RecomputeLoan recalculates and persists a single loan on demand, e.g. when
// a tolling event closes.
func (r *Runner) RecomputeLoan(ctx context.Context, tenantID string, loanID string) (*domain.SOLCalculationResult, error) {
	loan, err := r.repo.GetLoanState(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	rule, err := r.ruleStore.Get(ctx, tenantID, loan.JurisdictionCode)
	if err != nil {
		return nil, err
	}

	result, err := r.calculator.Calculate(loan, rule)
	if err != nil {
		return nil, err
	}

	if err := r.repo.UpsertSOLResult(ctx, tenantID, result); err != nil {
		return nil, err
	}

	r.publish(ctx, tenantID, domain.TopicSOLResult, result)

	return result, nil
}

func (r *Runner) publish(ctx context.Context, tenantID, topic string, payload any) {
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, tenantID, topic, data); err != nil {
		slog.Warn("failed to publish batch event",
			"topic", topic,
			"error", err,
		)
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotApplicable):
		return domain.SkipNotApplicable
	case errors.Is(err, domain.ErrJurisdictionNotFound):
		return domain.SkipJurisdictionNotFound
	case errors.Is(err, domain.ErrNoPeriodDefined):
		return domain.SkipNoPeriodDefined
	default:
		return domain.SkipNotApplicable
	}
}
