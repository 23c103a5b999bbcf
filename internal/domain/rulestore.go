package domain

import "context"

// RuleStore is the read side of the jurisdiction rule table. Implementations
// must return structurally equal rules for repeated calls with the same code
// within a process lifetime: callers treat the returned rule as an immutable
// snapshot for the duration of one calculation.
type RuleStore interface {
	// Get returns the enabled rule for a jurisdiction code.
	// Returns ErrJurisdictionNotFound when no enabled rule exists.
	Get(ctx context.Context, tenantID string, code string) (*JurisdictionRule, error)
}
