package rulestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-lending/gavel/internal/cache"
	"github.com/opensource-lending/gavel/internal/domain"
)

func intPtr(v int) *int {
	return &v
}

func testRule(code string) *domain.JurisdictionRule {
	return &domain.JurisdictionRule{
		Code:          code,
		TriggerEvents: []domain.TriggerEvent{domain.TriggerDefault},
		SOLPeriods: domain.SOLPeriods{
			ForeclosureYears: intPtr(6),
		},
		Enabled: true,
	}
}

func TestMemoryStoreGet(t *testing.T) {
	store, err := NewMemoryStore(testRule("NY"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()

	rule, err := store.Get(ctx, "tenant-001", "NY")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if rule.Code != "NY" {
		t.Errorf("expected NY, got %s", rule.Code)
	}

	if _, err := store.Get(ctx, "tenant-001", "ZZ"); !errors.Is(err, domain.ErrJurisdictionNotFound) {
		t.Errorf("expected ErrJurisdictionNotFound, got %v", err)
	}
}

func TestMemoryStoreRejectsInvalidRule(t *testing.T) {
	invalid := testRule("NY")
	invalid.TriggerEvents = nil

	if _, err := NewMemoryStore(invalid); !errors.Is(err, domain.ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestMemoryStoreDisabledRuleNotServed(t *testing.T) {
	disabled := testRule("NY")
	disabled.Enabled = false

	store, err := NewMemoryStore(disabled)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Get(context.Background(), "tenant-001", "NY"); !errors.Is(err, domain.ErrJurisdictionNotFound) {
		t.Errorf("expected ErrJurisdictionNotFound for disabled rule, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store, _ := NewMemoryStore(testRule("NY"))
	ctx := context.Background()

	first, _ := store.Get(ctx, "tenant-001", "NY")
	first.TriggerEvents[0] = domain.TriggerChargeOff
	*first.SOLPeriods.ForeclosureYears = 99

	second, _ := store.Get(ctx, "tenant-001", "NY")
	if second.TriggerEvents[0] != domain.TriggerDefault {
		t.Error("caller mutation leaked into the store")
	}
	if *second.SOLPeriods.ForeclosureYears != 6 {
		t.Error("caller mutation of period leaked into the store")
	}
}

// fakeRepo implements just enough of domain.Repository for store tests.
type fakeRepo struct {
	domain.Repository
	rules map[string]*domain.JurisdictionRule
	reads int
}

func (f *fakeRepo) GetJurisdictionRule(ctx context.Context, tenantID string, code string) (*domain.JurisdictionRule, error) {
	f.reads++
	rule, ok := f.rules[code]
	if !ok {
		return nil, domain.ErrJurisdictionNotFound
	}
	return rule, nil
}

func TestRepositoryStoreValidates(t *testing.T) {
	broken := testRule("NY")
	broken.MilestoneTemplate.Judicial = []domain.MilestoneBenchmark{
		{Sequence: 2, Name: "b", PreferredDays: 10},
		{Sequence: 1, Name: "a", PreferredDays: 10},
	}

	store := NewRepositoryStore(&fakeRepo{rules: map[string]*domain.JurisdictionRule{"NY": broken}})

	if _, err := store.Get(context.Background(), "tenant-001", "NY"); !errors.Is(err, domain.ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule for out-of-order sequence, got %v", err)
	}
}

func TestCachedStoreReadsThrough(t *testing.T) {
	repo := &fakeRepo{rules: map[string]*domain.JurisdictionRule{"NY": testRule("NY")}}
	store := NewCachedStore(NewRepositoryStore(repo), cache.NewLRUCache(100), time.Minute)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rule, err := store.Get(ctx, "tenant-001", "NY")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if rule.Code != "NY" {
			t.Errorf("expected NY, got %s", rule.Code)
		}
	}

	if repo.reads != 1 {
		t.Errorf("expected 1 repository read, got %d", repo.reads)
	}
}

func TestCachedStoreInvalidate(t *testing.T) {
	repo := &fakeRepo{rules: map[string]*domain.JurisdictionRule{"NY": testRule("NY")}}
	store := NewCachedStore(NewRepositoryStore(repo), cache.NewLRUCache(100), time.Minute)

	ctx := context.Background()

	if _, err := store.Get(ctx, "tenant-001", "NY"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := store.Invalidate(ctx, "tenant-001", "NY"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := store.Get(ctx, "tenant-001", "NY"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if repo.reads != 2 {
		t.Errorf("expected 2 repository reads after invalidation, got %d", repo.reads)
	}
}

func TestCachedStoreTenantIsolation(t *testing.T) {
	repo := &fakeRepo{rules: map[string]*domain.JurisdictionRule{"NY": testRule("NY")}}
	store := NewCachedStore(NewRepositoryStore(repo), cache.NewLRUCache(100), time.Minute)

	ctx := context.Background()

	store.Get(ctx, "tenant-001", "NY")
	store.Get(ctx, "tenant-002", "NY")

	if repo.reads != 2 {
		t.Errorf("tenants must not share cache entries, got %d reads", repo.reads)
	}
}
