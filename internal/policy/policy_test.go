package policy

import (
	"testing"

	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/sol"
)

func TestDefaultPolicyTiers(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name  string
		input sol.RiskInput
		want  domain.RiskLevel
	}{
		{"Expired", sol.RiskInput{DaysUntilExpiration: -5, IsExpired: true}, domain.RiskHigh},
		{"Within180", sol.RiskInput{DaysUntilExpiration: 180}, domain.RiskHigh},
		{"Within365", sol.RiskInput{DaysUntilExpiration: 365}, domain.RiskMedium},
		{"Beyond365", sol.RiskInput{DaysUntilExpiration: 366}, domain.RiskLow},
		{"LienEscalation", sol.RiskInput{DaysUntilExpiration: 200, LienExtinguished: true}, domain.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Classify("NY", tt.input)
			if err != nil {
				t.Fatalf("classify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLoadOverride(t *testing.T) {
	engine, _ := NewEngine()

	// A stricter jurisdiction: everything within a year is HIGH.
	err := engine.LoadOverride("NY", `days_until <= 365 ? 'HIGH' : 'LOW'`)
	if err != nil {
		t.Fatalf("failed to load override: %v", err)
	}

	if engine.OverrideCount() != 1 {
		t.Errorf("expected 1 override, got %d", engine.OverrideCount())
	}

	got, err := engine.Classify("NY", sol.RiskInput{DaysUntilExpiration: 300})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if got != domain.RiskHigh {
		t.Errorf("expected override verdict HIGH, got %s", got)
	}

	// Other jurisdictions still get the default policy.
	got, err = engine.Classify("CA", sol.RiskInput{DaysUntilExpiration: 300})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if got != domain.RiskMedium {
		t.Errorf("expected default verdict MEDIUM for CA, got %s", got)
	}

	// An empty expression removes the override.
	if err := engine.LoadOverride("NY", ""); err != nil {
		t.Fatalf("failed to remove override: %v", err)
	}
	if engine.OverrideCount() != 0 {
		t.Errorf("expected 0 overrides after removal, got %d", engine.OverrideCount())
	}
}

func TestValidatePolicy(t *testing.T) {
	engine, _ := NewEngine()

	if err := engine.ValidatePolicy(`is_expired ? 'HIGH' : 'LOW'`); err != nil {
		t.Errorf("valid policy rejected: %v", err)
	}

	if err := engine.ValidatePolicy(`this is not CEL !!!`); err == nil {
		t.Error("expected error for invalid CEL expression")
	}

	// Must return a string tier, not a number.
	if err := engine.ValidatePolicy(`days_until + 1`); err == nil {
		t.Error("expected error for non-string policy output")
	}
}

func TestClassifyRejectsUnknownTier(t *testing.T) {
	engine, _ := NewEngine()

	if err := engine.LoadOverride("TX", `'CRITICAL'`); err != nil {
		t.Fatalf("failed to load override: %v", err)
	}

	if _, err := engine.Classify("TX", sol.RiskInput{}); err == nil {
		t.Error("expected error for unknown tier string")
	}
}

func TestLoadFromRules(t *testing.T) {
	engine, _ := NewEngine()

	rules := []*domain.JurisdictionRule{
		{Code: "NY", RiskPolicyExpr: `'HIGH'`},
		{Code: "CA"}, // No override
		{Code: "TX", RiskPolicyExpr: `provisional ? 'HIGH' : 'LOW'`},
	}

	if err := engine.LoadFromRules(rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if engine.OverrideCount() != 2 {
		t.Errorf("expected 2 overrides, got %d", engine.OverrideCount())
	}

	got, err := engine.Classify("TX", sol.RiskInput{Provisional: true, DaysUntilExpiration: 900})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if got != domain.RiskHigh {
		t.Errorf("expected provisional-aware override HIGH, got %s", got)
	}

	// A bad expression anywhere rejects the whole reload.
	rules = append(rules, &domain.JurisdictionRule{Code: "FL", RiskPolicyExpr: `garbage !!!`})
	if err := engine.LoadFromRules(rules); err == nil {
		t.Error("expected error for invalid expression in rule set")
	}
	if engine.OverrideCount() != 2 {
		t.Errorf("failed reload must not alter installed overrides, got %d", engine.OverrideCount())
	}
}
