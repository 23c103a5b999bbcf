package domain

import (
	"time"
)

// ForeclosureStatus describes the action category currently in play for a
// loan. It drives governing-period selection: collection and deficiency
// actions bring the note and deficiency periods into the minimum.
type ForeclosureStatus string

const (
	StatusForeclosure ForeclosureStatus = "foreclosure"
	StatusCollection  ForeclosureStatus = "collection"
	StatusDeficiency  ForeclosureStatus = "deficiency"
)

// IsCollectionAction reports whether the note/deficiency periods apply.
func (s ForeclosureStatus) IsCollectionAction() bool {
	return s == StatusCollection || s == StatusDeficiency
}

// TollingEvent is an active or historical pause condition on a loan.
// End is nil while the condition is ongoing.
type TollingEvent struct {
	Provision TollingProvision `json:"provision"`
	Start     time.Time        `json:"start"`
	End       *time.Time       `json:"end,omitempty"`
}

// LoanLegalState is the normalized calculator input for one loan. All dates
// are calendar dates (UTC midnight); a nil date means the event has not
// occurred or is unknown, which is valid input.
type LoanLegalState struct {
	LoanID           string `json:"loanId"`
	JurisdictionCode string `json:"jurisdictionCode"`

	MaturityDate     *time.Time `json:"maturityDate,omitempty"`
	DefaultDate      *time.Time `json:"defaultDate,omitempty"`
	AccelerationDate *time.Time `json:"accelerationDate,omitempty"`
	LastPaymentDate  *time.Time `json:"lastPaymentDate,omitempty"`
	ChargeOffDate    *time.Time `json:"chargeOffDate,omitempty"`
	RecordingDate    *time.Time `json:"recordingDate,omitempty"`

	ForeclosureForm   ForeclosureForm   `json:"foreclosureForm,omitempty"`
	ForeclosureStatus ForeclosureStatus `json:"foreclosureStatus,omitempty"`

	TollingEvents []TollingEvent `json:"tollingEvents,omitempty"`
}

// TriggerDate returns the loan's date for the given trigger event kind,
// or nil when the event has no recorded date.
func (l *LoanLegalState) TriggerDate(ev TriggerEvent) *time.Time {
	switch ev {
	case TriggerMaturity:
		return l.MaturityDate
	case TriggerDefault:
		return l.DefaultDate
	case TriggerAcceleration:
		return l.AccelerationDate
	case TriggerLastPayment:
		return l.LastPaymentDate
	case TriggerChargeOff:
		return l.ChargeOffDate
	case TriggerRecording:
		return l.RecordingDate
	default:
		return nil
	}
}

// ForeclosureActuals is the projector input: the milestone completion dates
// actually recorded for one loan's foreclosure process.
type ForeclosureActuals struct {
	LoanID    string          `json:"loanId"`
	Form      ForeclosureForm `json:"foreclosureForm"`
	StartDate *time.Time      `json:"fcStartDate,omitempty"`

	// Completions maps milestone name to actual completion date.
	Completions map[string]time.Time `json:"completions,omitempty"`
}

// CompletionDate returns the actual completion date for a milestone name,
// or nil when the step has not been completed.
func (a *ForeclosureActuals) CompletionDate(name string) *time.Time {
	if a.Completions == nil {
		return nil
	}
	d, ok := a.Completions[name]
	if !ok {
		return nil
	}
	return &d
}
