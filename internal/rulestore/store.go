// Package rulestore provides jurisdiction rule lookup implementations.
//
// The calculators only ever see the domain.RuleStore interface; in-memory,
// repository-backed, and cached stores are interchangeable, which keeps the
// core deterministic under test via fixture stores.
package rulestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-lending/gavel/internal/domain"
)

// MemoryStore is a fixture-friendly in-memory rule store. Rules are
// deep-copied on both load and read so callers can never observe a torn or
// mutated rule mid-calculation.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*domain.JurisdictionRule
}

// NewMemoryStore creates a memory store seeded with the given rules.
// Invalid rules are rejected up front.
func NewMemoryStore(rules ...*domain.JurisdictionRule) (*MemoryStore, error) {
	s := &MemoryStore{rules: make(map[string]*domain.JurisdictionRule, len(rules))}
	for _, r := range rules {
		if err := s.Put(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put validates and stores a rule, replacing any prior version.
func (s *MemoryStore) Put(rule *domain.JurisdictionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.Code] = cloneRule(rule)
	return nil
}

// Get returns a copy of the enabled rule for the code.
func (s *MemoryStore) Get(ctx context.Context, tenantID string, code string) (*domain.JurisdictionRule, error) {
	s.mu.RLock()
	rule, ok := s.rules[code]
	s.mu.RUnlock()

	if !ok || !rule.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrJurisdictionNotFound, code)
	}
	return cloneRule(rule), nil
}

// RepositoryStore reads rules from the persistence layer.
type RepositoryStore struct {
	repo domain.Repository
}

// NewRepositoryStore creates a repository-backed rule store.
func NewRepositoryStore(repo domain.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

// Get fetches the rule from the repository and validates it before serving.
func (s *RepositoryStore) Get(ctx context.Context, tenantID string, code string) (*domain.JurisdictionRule, error) {
	rule, err := s.repo.GetJurisdictionRule(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if !rule.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", domain.ErrJurisdictionNotFound, code)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// CachedStore wraps a rule store with the shared cache. Batch runs over a
// large portfolio hit the same handful of jurisdiction rules repeatedly, so
// rule reads are cached with a TTL rather than fetched per loan.
type CachedStore struct {
	inner domain.RuleStore
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedStore creates a caching wrapper around a rule store.
func NewCachedStore(inner domain.RuleStore, cache domain.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedStore{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

// Get returns the cached rule when present, otherwise reads through and
// populates the cache. Cache failures fall back to the inner store.
func (s *CachedStore) Get(ctx context.Context, tenantID string, code string) (*domain.JurisdictionRule, error) {
	if cached, err := s.cache.GetRule(ctx, tenantID, code); err == nil && cached != nil {
		return cached, nil
	}

	rule, err := s.inner.Get(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}

	_ = s.cache.SetRule(ctx, tenantID, code, rule, s.ttl)
	return rule, nil
}

// Invalidate drops a cached rule, forcing the next read through the store.
func (s *CachedStore) Invalidate(ctx context.Context, tenantID string, code string) error {
	return s.cache.Delete(ctx, tenantID, "rule:"+code)
}

func cloneRule(r *domain.JurisdictionRule) *domain.JurisdictionRule {
	cp := *r
	cp.TriggerEvents = append([]domain.TriggerEvent(nil), r.TriggerEvents...)
	cp.TollingProvisions = append([]domain.TollingProvision(nil), r.TollingProvisions...)
	cp.MilestoneTemplate.Judicial = append([]domain.MilestoneBenchmark(nil), r.MilestoneTemplate.Judicial...)
	cp.MilestoneTemplate.NonJudicial = append([]domain.MilestoneBenchmark(nil), r.MilestoneTemplate.NonJudicial...)
	if r.SOLPeriods.Additional != nil {
		cp.SOLPeriods.Additional = make(map[string]int, len(r.SOLPeriods.Additional))
		for k, v := range r.SOLPeriods.Additional {
			cp.SOLPeriods.Additional[k] = v
		}
	}
	cp.SOLPeriods.LienYears = cloneInt(r.SOLPeriods.LienYears)
	cp.SOLPeriods.NoteYears = cloneInt(r.SOLPeriods.NoteYears)
	cp.SOLPeriods.ForeclosureYears = cloneInt(r.SOLPeriods.ForeclosureYears)
	cp.SOLPeriods.DeficiencyYears = cloneInt(r.SOLPeriods.DeficiencyYears)
	return &cp
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
