package payroll

import "time"

// YTDTotals are the year-to-date gross and employee-tax sums feeding
// wage-base-cap evaluation.
type YTDTotals struct {
	GrossMinor int64
	TaxMinor   int64
}

// yearStart returns January 1 of the period's calendar year; "year" is
// defined by the run's period start.
func yearStart(periodStart time.Time) time.Time {
	return time.Date(periodStart.Year(), time.January, 1, 0, 0, 0, 0, periodStart.Location())
}
