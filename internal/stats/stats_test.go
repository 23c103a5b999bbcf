package stats

import (
	"context"
	"testing"

	"github.com/opensource-lending/gavel/internal/domain"
)

type fakeRepo struct {
	domain.Repository
	dist map[domain.RiskLevel]int
}

func (f *fakeRepo) RiskDistribution(ctx context.Context, tenantID string) (map[domain.RiskLevel]int, error) {
	return f.dist, nil
}

func TestRiskDistribution(t *testing.T) {
	svc := NewService(&fakeRepo{dist: map[domain.RiskLevel]int{
		domain.RiskHigh:   3,
		domain.RiskMedium: 5,
		domain.RiskLow:    12,
	}}, nil)

	report, err := svc.RiskDistribution(context.Background(), "tenant-001")
	if err != nil {
		t.Fatalf("risk distribution failed: %v", err)
	}

	if report.Total != 20 {
		t.Errorf("expected total 20, got %d", report.Total)
	}
	if report.Distribution[domain.RiskHigh] != 3 {
		t.Errorf("expected 3 HIGH, got %d", report.Distribution[domain.RiskHigh])
	}
	if report.TenantID != "tenant-001" {
		t.Errorf("expected tenant-001, got %s", report.TenantID)
	}
}

func TestRiskDistributionRequiresTenant(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	if _, err := svc.RiskDistribution(context.Background(), ""); err == nil {
		t.Error("expected error for empty tenantID")
	}
}
