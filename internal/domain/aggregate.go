package domain

import (
	"sort"
	"time"
)

// DayTotal is one app-day's unclamped point sum.
type DayTotal struct {
	DayStart    time.Time
	TotalPoints float64
}

// AggregateDaily buckets entries into per-app-day totals using the same
// boundary rule as the ledger. Days without entries produce no bucket;
// callers needing a dense series fill gaps with zero themselves. The result
// is sorted by day and independent of input order.
func AggregateDaily(entries []Entry, cutoffHour int, loc *time.Location) ([]DayTotal, error) {
	if err := ValidateCutoffHour(cutoffHour); err != nil {
		return nil, err
	}

	totals := make(map[time.Time]float64, len(entries))
	for _, entry := range entries {
		dayStart, _, err := DayRange(entry.Timestamp, cutoffHour, loc)
		if err != nil {
			return nil, err
		}
		totals[dayStart] += entry.Points
	}

	out := make([]DayTotal, 0, len(totals))
	for day, sum := range totals {
		out = append(out, DayTotal{DayStart: day, TotalPoints: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayStart.Before(out[j].DayStart) })
	return out, nil
}

// DailyEngagement sums one deed's raw amounts per app-day, producing the
// engagement series the correlation analyzer pairs against net scores.
func DailyEngagement(entries []Entry, deedID string, cutoffHour int, loc *time.Location) ([]DailyPoint, error) {
	if err := ValidateCutoffHour(cutoffHour); err != nil {
		return nil, err
	}

	amounts := make(map[time.Time]float64)
	for _, entry := range entries {
		if entry.DeedID != deedID {
			continue
		}
		dayStart, _, err := DayRange(entry.Timestamp, cutoffHour, loc)
		if err != nil {
			return nil, err
		}
		amounts[dayStart] += entry.Amount
	}

	out := make([]DailyPoint, 0, len(amounts))
	for day, amount := range amounts {
		out = append(out, DailyPoint{Day: day, Value: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// CategoryComparisons sums points per deed category over two adjacent
// periods: previous [previousFrom, currentFrom) and current
// [currentFrom, currentTo). Deeds without a category fall under "Other".
func CategoryComparisons(deeds []Deed, entries []Entry, previousFrom, currentFrom, currentTo time.Time) []CategoryComparison {
	categoryByDeed := make(map[string]string, len(deeds))
	order := make([]string, 0)
	seen := make(map[string]bool)
	for _, deed := range deeds {
		category := deed.Category
		if category == "" {
			category = "Other"
		}
		categoryByDeed[deed.ID] = category
		if !seen[category] {
			seen[category] = true
			order = append(order, category)
		}
	}

	current := make(map[string]float64)
	previous := make(map[string]float64)
	for _, entry := range entries {
		category, ok := categoryByDeed[entry.DeedID]
		if !ok {
			continue
		}
		switch {
		case !entry.Timestamp.Before(currentFrom) && entry.Timestamp.Before(currentTo):
			current[category] += entry.Points
		case !entry.Timestamp.Before(previousFrom) && entry.Timestamp.Before(currentFrom):
			previous[category] += entry.Points
		}
	}

	out := make([]CategoryComparison, 0, len(order))
	for _, category := range order {
		out = append(out, CategoryComparison{
			Category: category,
			Current:  current[category],
			Previous: previous[category],
		})
	}
	return out
}
