// Package timeline implements the foreclosure milestone timeline projector.
package timeline

import (
	"time"

	"github.com/opensource-lending/gavel/internal/domain"
)

// Projector computes expected-vs-actual completion dates for a loan's
// foreclosure milestones. It is a pure function of (actuals, rule, today)
// and safe for concurrent use.
type Projector struct {
	clock domain.Clock
}

// NewProjector creates a projector. A nil clock defaults to time.Now.
func NewProjector(clock domain.Clock) *Projector {
	if clock == nil {
		clock = time.Now
	}
	return &Projector{clock: clock}
}

// Project walks the jurisdiction's milestone template for the loan's
// foreclosure form and emits one entry per milestone, in sequence order.
//
// The chain cursor always advances on the just-computed expected date, never
// the actual completion date: each benchmark duration is defined relative to
// the previous step's benchmark, not to how early or late that step actually
// finished. Callers that want actual-anchored projections must not get them
// silently from here.
//
// A nil rule or a missing template for the requested form yields an empty
// timeline, which is valid output, not an error.
func (p *Projector) Project(actuals *domain.ForeclosureActuals, rule *domain.JurisdictionRule) []domain.TimelineEntry {
	if actuals == nil || rule == nil {
		return nil
	}

	benchmarks := rule.MilestoneTemplate.ForForm(actuals.Form)
	if len(benchmarks) == 0 {
		return nil
	}

	cursor := domain.DateOnly(p.clock())
	if actuals.StartDate != nil {
		cursor = domain.DateOnly(*actuals.StartDate)
	}

	entries := make([]domain.TimelineEntry, 0, len(benchmarks))
	for _, b := range benchmarks {
		actual := actuals.CompletionDate(b.Name)
		expected := cursor.AddDate(0, 0, b.PreferredDays)

		entries = append(entries, domain.TimelineEntry{
			Sequence:      b.Sequence,
			MilestoneName: b.Name,
			Actual:        actual,
			Expected:      expected,
		})

		cursor = expected
	}

	return entries
}
