package domain

import "errors"

// Per-loan calculator failures. All are recoverable: the batch runner counts
// and logs them, it never aborts a batch over a single loan.
var (
	// ErrNotApplicable means none of the jurisdiction's trigger events have
	// a populated date on the loan, so no SOL clock can be started.
	ErrNotApplicable = errors.New("sol not applicable: no usable trigger date")

	// ErrJurisdictionNotFound means no enabled rule exists for the loan's
	// jurisdiction code.
	ErrJurisdictionNotFound = errors.New("jurisdiction rule not found")

	// ErrNoPeriodDefined means the rule defines no limitation period for
	// the action category in play.
	ErrNoPeriodDefined = errors.New("no sol period defined for action category")

	// ErrInvalidRule means a jurisdiction rule failed structural validation.
	ErrInvalidRule = errors.New("invalid jurisdiction rule")
)
