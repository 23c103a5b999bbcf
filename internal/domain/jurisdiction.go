// Package domain defines the core interfaces and types for Gavel.
package domain

import (
	"fmt"
	"time"
)

// TriggerEvent identifies a loan lifecycle event that can start the SOL clock.
type TriggerEvent string

const (
	TriggerMaturity     TriggerEvent = "maturity"
	TriggerDefault      TriggerEvent = "default"
	TriggerAcceleration TriggerEvent = "acceleration"
	TriggerLastPayment  TriggerEvent = "lastPayment"
	TriggerChargeOff    TriggerEvent = "chargeOff"
	TriggerRecording    TriggerEvent = "recording"
)

// TollingProvision identifies a legally recognized pause of the SOL clock.
type TollingProvision string

const (
	TollingBankruptcyFiling    TollingProvision = "bankruptcyFiling"
	TollingAutomaticStay       TollingProvision = "automaticStay"
	TollingOutOfStateResidence TollingProvision = "outOfStateResidence"
	TollingMilitaryService     TollingProvision = "militaryService"
	TollingMinority            TollingProvision = "minority"
	TollingMentalIncapacity    TollingProvision = "mentalIncapacity"
	TollingFraudConcealment    TollingProvision = "fraudConcealment"
	TollingDebtAcknowledgment  TollingProvision = "debtAcknowledgment"
	TollingPartialPayment      TollingProvision = "partialPayment"
)

// ForeclosureForm selects which milestone template applies to a loan.
type ForeclosureForm string

const (
	FormJudicial    ForeclosureForm = "judicial"
	FormNonJudicial ForeclosureForm = "nonJudicial"
)

// SOLPeriods holds the limitation periods for a jurisdiction, in years.
// A nil pointer means no period is defined for that category, which is
// different from a zero-year period.
type SOLPeriods struct {
	LienYears        *int `json:"lienYears,omitempty"`
	NoteYears        *int `json:"noteYears,omitempty"`
	ForeclosureYears *int `json:"foreclosureYears,omitempty"`
	DeficiencyYears  *int `json:"deficiencyYears,omitempty"`

	// Additional holds jurisdiction-specific extra periods keyed by name.
	// They are carried for reporting but never enter the governing minimum.
	Additional map[string]int `json:"additional,omitempty"`
}

// ExpirationEffect describes the legal consequences once the SOL has run.
type ExpirationEffect struct {
	LienExtinguished  bool `json:"lienExtinguished"`
	ForeclosureBarred bool `json:"foreclosureBarred"`
	DeficiencyBarred  bool `json:"deficiencyBarred"`
	BecomesUnsecured  bool `json:"becomesUnsecured"`
}

// MilestoneBenchmark is one step of a jurisdiction's foreclosure template.
// PreferredDays is defined relative to the previous step's benchmark date,
// not to how early or late that step actually finished.
type MilestoneBenchmark struct {
	Sequence      int    `json:"sequence"`
	Name          string `json:"name"`
	PreferredDays int    `json:"preferredDays"`
}

// MilestoneTemplate holds the ordered benchmark lists per foreclosure form.
type MilestoneTemplate struct {
	Judicial    []MilestoneBenchmark `json:"judicial,omitempty"`
	NonJudicial []MilestoneBenchmark `json:"nonJudicial,omitempty"`
}

// ForForm returns the benchmark list for the given foreclosure form.
func (t MilestoneTemplate) ForForm(form ForeclosureForm) []MilestoneBenchmark {
	switch form {
	case FormJudicial:
		return t.Judicial
	case FormNonJudicial:
		return t.NonJudicial
	default:
		return nil
	}
}

// JurisdictionRule is the legal parameter set for one jurisdiction code
// (state abbreviation, optionally qualified by judicial/non-judicial variant).
type JurisdictionRule struct {
	Code string `json:"code"`
	Name string `json:"name"`

	SOLPeriods SOLPeriods `json:"solPeriods"`

	// TriggerEvents in declared precedence order: the earliest-listed event
	// with a populated date on the loan wins, regardless of chronology.
	TriggerEvents []TriggerEvent `json:"triggerEvents"`

	// TollingProvisions recognized by this jurisdiction. Loan tolling events
	// outside this set are ignored.
	TollingProvisions []TollingProvision `json:"tollingProvisions,omitempty"`

	ExpirationEffect ExpirationEffect `json:"effectOfExpiration"`

	MilestoneTemplate MilestoneTemplate `json:"milestoneTemplate"`

	// RiskPolicyExpr optionally overrides the default risk-tier policy with
	// a CEL expression. Empty means the default 180/365-day policy applies.
	RiskPolicyExpr string `json:"riskPolicyExpr,omitempty"`

	Enabled   bool      `json:"enabled"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecognizesTolling reports whether the provision is in the rule's set.
func (r *JurisdictionRule) RecognizesTolling(p TollingProvision) bool {
	for _, tp := range r.TollingProvisions {
		if tp == p {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a jurisdiction rule.
// A rule that fails validation must not be served to the calculators.
func (r *JurisdictionRule) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("%w: jurisdiction code is required", ErrInvalidRule)
	}
	if len(r.TriggerEvents) == 0 {
		return fmt.Errorf("%w: jurisdiction %s has no trigger events", ErrInvalidRule, r.Code)
	}
	seen := make(map[TriggerEvent]bool, len(r.TriggerEvents))
	for _, ev := range r.TriggerEvents {
		if seen[ev] {
			return fmt.Errorf("%w: jurisdiction %s lists trigger %s twice", ErrInvalidRule, r.Code, ev)
		}
		seen[ev] = true
	}
	for name, years := range map[string]*int{
		"lien":        r.SOLPeriods.LienYears,
		"note":        r.SOLPeriods.NoteYears,
		"foreclosure": r.SOLPeriods.ForeclosureYears,
		"deficiency":  r.SOLPeriods.DeficiencyYears,
	} {
		if years != nil && *years < 0 {
			return fmt.Errorf("%w: jurisdiction %s has negative %s period", ErrInvalidRule, r.Code, name)
		}
	}
	for name, years := range r.SOLPeriods.Additional {
		if years < 0 {
			return fmt.Errorf("%w: jurisdiction %s has negative additional period %s", ErrInvalidRule, r.Code, name)
		}
	}
	if err := validateBenchmarks(r.Code, "judicial", r.MilestoneTemplate.Judicial); err != nil {
		return err
	}
	return validateBenchmarks(r.Code, "nonJudicial", r.MilestoneTemplate.NonJudicial)
}

func validateBenchmarks(code, form string, benchmarks []MilestoneBenchmark) error {
	prev := 0
	for _, b := range benchmarks {
		if b.Name == "" {
			return fmt.Errorf("%w: jurisdiction %s %s template has unnamed milestone", ErrInvalidRule, code, form)
		}
		if b.PreferredDays <= 0 {
			return fmt.Errorf("%w: jurisdiction %s milestone %s has non-positive preferred days", ErrInvalidRule, code, b.Name)
		}
		if b.Sequence <= prev {
			return fmt.Errorf("%w: jurisdiction %s %s template sequence must be strictly increasing", ErrInvalidRule, code, form)
		}
		prev = b.Sequence
	}
	return nil
}
