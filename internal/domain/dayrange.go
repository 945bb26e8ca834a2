package domain

import "time"

// DayRange returns the half-open app-day interval [start, end) containing
// instant. App-day boundaries sit cutoffHour hours after local midnight, so
// an entry logged at 01:30 with a cutoff of 4 still counts toward the
// previous day. The one-day step uses calendar arithmetic so the interval
// stays aligned across daylight-saving transitions.
func DayRange(instant time.Time, cutoffHour int, loc *time.Location) (time.Time, time.Time, error) {
	if err := ValidateCutoffHour(cutoffHour); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	shifted := instant.In(loc).Add(-time.Duration(cutoffHour) * time.Hour)
	year, month, day := shifted.Date()
	start := time.Date(year, month, day, cutoffHour, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
