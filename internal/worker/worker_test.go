package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-lending/gavel/internal/batch"
	"github.com/opensource-lending/gavel/internal/bus"
	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/rulestore"
	"github.com/opensource-lending/gavel/internal/sol"
)

func intPtr(v int) *int {
	return &v
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fakeRepo struct {
	domain.Repository

	mu      sync.Mutex
	loans   map[string]*domain.LoanLegalState
	results map[string]*domain.SOLCalculationResult
}

func (f *fakeRepo) GetLoanState(ctx context.Context, tenantID string, loanID string) (*domain.LoanLegalState, error) {
	loan, ok := f.loans[loanID]
	if !ok {
		return nil, domain.ErrNotApplicable
	}
	return loan, nil
}

func (f *fakeRepo) UpsertSOLResult(ctx context.Context, tenantID string, result *domain.SOLCalculationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.LoanID] = result
	return nil
}

func (f *fakeRepo) getResult(loanID string) *domain.SOLCalculationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[loanID]
}

func TestWorkerRecomputesOnMessage(t *testing.T) {
	repo := &fakeRepo{
		loans: map[string]*domain.LoanLegalState{
			"loan-001": {
				LoanID:           "loan-001",
				JurisdictionCode: "NY",
				DefaultDate:      datePtr(2021, 3, 10),
			},
		},
		results: make(map[string]*domain.SOLCalculationResult),
	}

	store, err := rulestore.NewMemoryStore(&domain.JurisdictionRule{
		Code:          "NY",
		TriggerEvents: []domain.TriggerEvent{domain.TriggerDefault},
		SOLPeriods:    domain.SOLPeriods{ForeclosureYears: intPtr(6)},
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("failed to create rule store: %v", err)
	}

	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	runner := batch.NewRunner(repo, store, sol.NewCalculator(nil, nil), eventBus, 4)

	w := NewWorker(eventBus, runner)
	if err := w.Start([]string{"tenant-001"}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	payload, _ := json.Marshal(RecomputeRequest{LoanID: "loan-001", Reason: "tolling closed"})
	if err := eventBus.Publish(context.Background(), "tenant-001", domain.TopicSOLRecompute, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.After(time.Second)
	for repo.getResult("loan-001") == nil {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for recompute")
		case <-time.After(10 * time.Millisecond):
		}
	}

	result := repo.getResult("loan-001")
	if result.JurisdictionCode != "NY" {
		t.Errorf("unexpected jurisdiction %s", result.JurisdictionCode)
	}
}

func TestWorkerRequiresTenants(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, nil)
	if err := w.Start(nil); err == nil {
		t.Error("expected error for empty tenant list")
	}
}

func TestWorkerStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, nil)
	if err := w.Start([]string{"tenant-001"}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
