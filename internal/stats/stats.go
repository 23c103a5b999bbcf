// Package stats provides portfolio risk-distribution reporting.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-lending/gavel/internal/domain"
)

// Service reports aggregate risk statistics over persisted SOL results.
// Aggregation happens at the orchestration boundary; the calculators never
// compute portfolio-level numbers themselves.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new stats service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// RiskReport is the tenant-level risk distribution snapshot.
type RiskReport struct {
	TenantID     string                   `json:"tenantId"`
	Total        int                      `json:"total"`
	Distribution map[domain.RiskLevel]int `json:"distribution"`
	GeneratedAt  time.Time                `json:"generatedAt"`
}

// RiskDistribution returns result counts grouped by risk level.
func (s *Service) RiskDistribution(ctx context.Context, tenantID string) (*RiskReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	dist, err := s.repo.RiskDistribution(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk distribution: %w", err)
	}

	report := &RiskReport{
		TenantID:     tenantID,
		Distribution: dist,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, count := range dist {
		report.Total += count
	}

	return report, nil
}
