// Package sol implements the statute-of-limitations calculator.
//
// The calculator is a pure function of (loan state, jurisdiction rule, today).
// It holds no mutable state and is safe to call concurrently across loans.
package sol

import (
	"fmt"
	"time"

	"github.com/opensource-lending/gavel/internal/domain"
)

// Classifier maps a computed expiration horizon to a risk tier.
// Implemented by policy.Engine.
type Classifier interface {
	Classify(jurisdictionCode string, input RiskInput) (domain.RiskLevel, error)
}

// RiskInput is the classifier's view of a computed result.
type RiskInput struct {
	DaysUntilExpiration int
	IsExpired           bool
	LienExtinguished    bool
	Provisional         bool
}

// Calculator computes SOL expiration for loans.
type Calculator struct {
	classifier Classifier
	clock      domain.Clock
}

// NewCalculator creates a calculator. A nil clock defaults to time.Now;
// tests inject a fixed clock for deterministic output.
func NewCalculator(classifier Classifier, clock domain.Clock) *Calculator {
	if clock == nil {
		clock = time.Now
	}
	return &Calculator{
		classifier: classifier,
		clock:      clock,
	}
}

// Calculate produces the SOL result for one loan under one jurisdiction rule.
//
// Failure modes are per-loan and recoverable:
//   - domain.ErrJurisdictionNotFound: rule is nil or disabled
//   - domain.ErrNotApplicable: no trigger event has a populated date
//   - domain.ErrNoPeriodDefined: no period exists for the action category
func (c *Calculator) Calculate(loan *domain.LoanLegalState, rule *domain.JurisdictionRule) (*domain.SOLCalculationResult, error) {
	if rule == nil || !rule.Enabled {
		return nil, fmt.Errorf("%w: jurisdiction %q", domain.ErrJurisdictionNotFound, loan.JurisdictionCode)
	}

	triggerEvent, triggerDate, ok := selectTrigger(loan, rule)
	if !ok {
		return nil, fmt.Errorf("%w: loan %s", domain.ErrNotApplicable, loan.LoanID)
	}

	periodYears, ok := governingPeriod(loan, rule)
	if !ok {
		return nil, fmt.Errorf("%w: loan %s in jurisdiction %s", domain.ErrNoPeriodDefined, loan.LoanID, rule.Code)
	}

	now := c.clock()
	today := domain.DateOnly(now)

	expiration := domain.DateOnly(triggerDate).AddDate(periodYears, 0, 0)
	tollingDays, provisional := tollingAdjustment(loan, rule, today)
	if tollingDays > 0 {
		expiration = expiration.AddDate(0, 0, tollingDays)
	}

	daysUntil := domain.DaysBetween(today, expiration)
	expired := daysUntil < 0

	result := &domain.SOLCalculationResult{
		LoanID:              loan.LoanID,
		JurisdictionCode:    rule.Code,
		TriggerEvent:        triggerEvent,
		TriggerDate:         domain.DateOnly(triggerDate),
		PeriodYears:         periodYears,
		ExpirationDate:      expiration,
		DaysUntilExpiration: daysUntil,
		IsExpired:           expired,
		Provisional:         provisional,
		CalculatedAt:        now.UTC(),
	}

	result.RiskLevel = c.classify(rule, result)

	return result, nil
}

// selectTrigger picks the trigger event by rule precedence: the first event
// in the rule's declared order with a populated loan date wins. Chronological
// order of the dates themselves is irrelevant.
func selectTrigger(loan *domain.LoanLegalState, rule *domain.JurisdictionRule) (domain.TriggerEvent, time.Time, bool) {
	for _, ev := range rule.TriggerEvents {
		if d := loan.TriggerDate(ev); d != nil {
			return ev, *d, true
		}
	}
	return "", time.Time{}, false
}

// governingPeriod returns the minimum of the periods relevant to the action
// category in play. Foreclosure actions consider the lien and foreclosure
// periods; collection and deficiency actions additionally consider the note
// and deficiency periods. Absent periods are excluded from the minimum.
func governingPeriod(loan *domain.LoanLegalState, rule *domain.JurisdictionRule) (int, bool) {
	candidates := []*int{
		rule.SOLPeriods.LienYears,
		rule.SOLPeriods.ForeclosureYears,
	}
	if loan.ForeclosureStatus.IsCollectionAction() {
		candidates = append(candidates, rule.SOLPeriods.NoteYears, rule.SOLPeriods.DeficiencyYears)
	}

	best := 0
	found := false
	for _, p := range candidates {
		if p == nil {
			continue
		}
		if !found || *p < best {
			best = *p
			found = true
		}
	}
	return best, found
}

// tollingAdjustment sums the paused days across the loan's tolling events
// that the rule recognizes. Tolling only ever extends the deadline. An open
// interval (no end date) is measured up to today as a placeholder and marks
// the result provisional: it must be recomputed once the event closes.
func tollingAdjustment(loan *domain.LoanLegalState, rule *domain.JurisdictionRule, today time.Time) (days int, provisional bool) {
	for _, ev := range loan.TollingEvents {
		if !rule.RecognizesTolling(ev.Provision) {
			continue
		}

		end := today
		if ev.End != nil {
			end = domain.DateOnly(*ev.End)
		} else {
			provisional = true
		}

		if d := domain.DaysBetween(ev.Start, end); d > 0 {
			days += d
		}
	}
	return days, provisional
}

func (c *Calculator) classify(rule *domain.JurisdictionRule, result *domain.SOLCalculationResult) domain.RiskLevel {
	input := RiskInput{
		DaysUntilExpiration: result.DaysUntilExpiration,
		IsExpired:           result.IsExpired,
		LienExtinguished:    rule.ExpirationEffect.LienExtinguished,
		Provisional:         result.Provisional,
	}

	if c.classifier != nil {
		if level, err := c.classifier.Classify(rule.Code, input); err == nil {
			return level
		}
	}

	return DefaultRiskLevel(input)
}

// Default risk thresholds in days. These are operational policy, not legal
// constants; jurisdictions can override via a CEL risk policy expression.
const (
	defaultHighWithinDays   = 180
	defaultMediumWithinDays = 365
)

// DefaultRiskLevel applies the built-in tier policy: HIGH when expired or
// within 180 days, MEDIUM within 365 days, LOW otherwise. A MEDIUM loan in
// a lien-extinguishment jurisdiction escalates to HIGH, since losing the
// lien is more consequential than losing a money judgment alone.
func DefaultRiskLevel(input RiskInput) domain.RiskLevel {
	switch {
	case input.IsExpired || input.DaysUntilExpiration <= defaultHighWithinDays:
		return domain.RiskHigh
	case input.DaysUntilExpiration <= defaultMediumWithinDays:
		if input.LienExtinguished {
			return domain.RiskHigh
		}
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
