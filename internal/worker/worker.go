// Package worker provides async recomputation from the EventBus.
//
// Provisional SOL results must be recomputed once their open tolling event
// closes; the surrounding servicing system signals that by publishing a
// recompute message. The worker subscribes per tenant and reuses the batch
// runner's single-loan path.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-lending/gavel/internal/batch"
	"github.com/opensource-lending/gavel/internal/domain"
)

// RecomputeRequest is the payload of a gavel.sol.recompute message.
type RecomputeRequest struct {
	LoanID string `json:"loanId"`
	Reason string `json:"reason,omitempty"`
}

// Worker processes recompute requests asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	runner *batch.Runner

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, runner *batch.Runner) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the recompute topic for the given tenants.
func (w *Worker) Start(tenantIDs []string) error {
	if len(tenantIDs) == 0 {
		return fmt.Errorf("at least one tenant is required")
	}

	for _, tenantID := range tenantIDs {
		tenantID := tenantID
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicSOLRecompute, func(ctx context.Context, msg *domain.Message) error {
			return w.handleRecompute(ctx, tenantID, msg)
		})
		if err != nil {
			slog.Error("failed to subscribe recompute worker",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("recompute workers started",
		"tenant_count", len(w.subscriptions),
	)
	return nil
}

func (w *Worker) handleRecompute(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req RecomputeRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("malformed recompute request",
			"tenant_id", tenantID,
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	result, err := w.runner.RecomputeLoan(ctx, tenantID, req.LoanID)
	if err != nil {
		slog.Warn("recompute failed",
			"loan_id", req.LoanID,
			"tenant_id", tenantID,
			"reason", req.Reason,
			"error", err,
		)
		return err
	}

	slog.Info("loan recomputed",
		"loan_id", req.LoanID,
		"tenant_id", tenantID,
		"risk_level", result.RiskLevel,
		"provisional", result.Provisional,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("recompute workers stopped")
	return nil
}
