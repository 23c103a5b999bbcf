package domain

import "time"

// Clock supplies the "today" anchor for date arithmetic. Injectable so that
// calculator output is fully deterministic under test.
type Clock func() time.Time

// DateOnly truncates a timestamp to its UTC calendar date. All calculator
// inputs and outputs are normalized through this so that time-of-day and
// zone offsets never shift a deadline across a day boundary.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of whole calendar days from 'from'
// to 'to'. Both arguments are normalized to UTC dates first.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)) / (24 * time.Hour))
}
