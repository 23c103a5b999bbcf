package domain

import (
	"time"
)

// RiskLevel is the coarse urgency classification of a loan's SOL horizon.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// SOLCalculationResult is the calculator output, upserted one per loan.
type SOLCalculationResult struct {
	LoanID           string       `json:"loanId"`
	JurisdictionCode string       `json:"jurisdictionCode"`
	TriggerEvent     TriggerEvent `json:"solTriggerEvent"`
	TriggerDate      time.Time    `json:"triggerDate"`
	PeriodYears      int          `json:"solPeriodYears"`
	ExpirationDate   time.Time    `json:"expirationDate"`

	// DaysUntilExpiration is signed: negative means already expired.
	DaysUntilExpiration int  `json:"daysUntilExpiration"`
	IsExpired           bool `json:"isExpired"`

	// Provisional marks a result computed while a recognized tolling event
	// is still open. It must be recomputed once the event closes.
	Provisional bool `json:"provisional"`

	RiskLevel    RiskLevel `json:"solRiskLevel"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// TimelineEntry is one projected foreclosure milestone. Entries are computed
// per request and never persisted.
type TimelineEntry struct {
	Sequence      int        `json:"sequence"`
	MilestoneName string     `json:"milestoneName"`
	Actual        *time.Time `json:"actualCompletionDate,omitempty"`
	Expected      time.Time  `json:"expectedCompletionDate"`
}

// Skip reasons accumulated by the batch runner. Each corresponds to a
// recoverable per-loan condition, never a batch failure.
const (
	SkipNotApplicable        = "notApplicable"
	SkipJurisdictionNotFound = "jurisdictionNotFound"
	SkipNoPeriodDefined      = "noPeriodDefined"
	SkipPersistFailed        = "persistFailed"
)

// BatchSummary is the aggregate outcome of one batch run.
type BatchSummary struct {
	RunID        string            `json:"runId"`
	TenantID     string            `json:"tenantId"`
	TotalLoans   int               `json:"totalLoans"`
	Computed     int               `json:"computed"`
	Provisional  int               `json:"provisional"`
	Skipped      map[string]int    `json:"skipped,omitempty"`
	Distribution map[RiskLevel]int `json:"distribution"`
	StartedAt    time.Time         `json:"startedAt"`
	ElapsedMs    int64             `json:"elapsedMs"`
}
