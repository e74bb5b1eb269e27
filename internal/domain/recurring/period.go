package recurring

import "time"

// occurrence returns the n-th scheduled date of the template, anchored to
// its start date. Month-based frequencies clamp the anchor day to the last
// day of shorter months, so a template starting on the 31st fires on
// Feb 28/29 instead of drifting into March.
func (t *Template) occurrence(n int) time.Time {
	switch t.Frequency {
	case FrequencyDaily:
		return t.StartDate.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.StartDate.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return addMonthsClamped(t.StartDate, n)
	case FrequencyQuarterly:
		return addMonthsClamped(t.StartDate, 3*n)
	case FrequencyYearly:
		return addMonthsClamped(t.StartDate, 12*n)
	}
	// Unknown frequency never produces a schedule
	return time.Time{}
}

// DueOccurrences returns the scheduled dates that are due at now and have
// not been generated yet, in ascending order. The last generated date is
// exclusive, the end date inclusive.
func (t *Template) DueOccurrences(now time.Time) []time.Time {
	var due []time.Time
	for n := 0; ; n++ {
		occ := t.occurrence(n)
		if occ.IsZero() || occ.After(now) {
			break
		}
		if t.EndDate != nil && occ.After(*t.EndDate) {
			break
		}
		if t.LastGeneratedDate != nil && !occ.After(*t.LastGeneratedDate) {
			continue
		}
		due = append(due, occ)
	}
	return due
}

// addMonthsClamped shifts t by months keeping the day of month, clamped
// to the target month's last day.
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	target := first.AddDate(0, months, 0)

	day := t.Day()
	if last := target.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
