package domain

import (
	"math"
	"sort"
	"time"
)

// Gating thresholds for correlation insights. Both must hold before an
// insight is surfaced; rejected computations emit nothing.
const (
	// MinInsightSamples is the minimum number of app-days where both an
	// engagement value and a net-score value exist.
	MinInsightSamples = 20
	// MinInsightStrength is the minimum |r| worth reporting.
	MinInsightStrength = 0.5
)

// DailyPoint is one app-day's value in a daily series.
type DailyPoint struct {
	Day   time.Time
	Value float64
}

// Insight reports a correlation strong enough to surface.
type Insight struct {
	DeedID      string
	DeedName    string
	Coefficient float64
	SampleCount int
}

// CategoryComparison pairs a category's current and previous period totals.
type CategoryComparison struct {
	Category string
	Current  float64
	Previous float64
}

// Improvement is the category with the largest relative gain.
type Improvement struct {
	Category string
	Percent  float64
}

// InsightSink receives one event per surfaced correlation insight.
type InsightSink interface {
	RecordCorrelation(deedName string, coefficient float64, sampleCount int)
}

// NopInsightSink discards insight events.
type NopInsightSink struct{}

func (NopInsightSink) RecordCorrelation(string, float64, int) {}

// Pearson computes the Pearson correlation coefficient over paired series.
// ok is false when the lengths differ, fewer than two pairs exist, or either
// series has zero variance; a zero-variance series has no defined
// correlation and must not masquerade as r=0.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}

	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var covariance, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		covariance += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return covariance / math.Sqrt(varX*varY), true
}

// CorrelationAnalyzer gates insight reporting on sample size and strength.
// Zero-value thresholds fall back to the package defaults.
type CorrelationAnalyzer struct {
	MinSamples  int
	MinStrength float64
	Sink        InsightSink
}

// Insight restricts both daily series to the trailing windowDays app-days
// for which both have a value, then reports the correlation only when at
// least MinSamples overlapping days exist and |r| meets MinStrength. On
// rejection it returns nil and does not touch the sink; on success the sink
// receives exactly one event.
func (a CorrelationAnalyzer) Insight(deed Deed, engagement, net []DailyPoint, windowDays int) *Insight {
	minSamples := a.MinSamples
	if minSamples <= 0 {
		minSamples = MinInsightSamples
	}
	minStrength := a.MinStrength
	if minStrength <= 0 {
		minStrength = MinInsightStrength
	}

	netByDay := make(map[time.Time]float64, len(net))
	for _, point := range net {
		netByDay[point.Day] = point.Value
	}

	paired := make([]DailyPoint, 0, len(engagement))
	for _, point := range engagement {
		if _, ok := netByDay[point.Day]; ok {
			paired = append(paired, point)
		}
	}
	sort.Slice(paired, func(i, j int) bool { return paired[i].Day.Before(paired[j].Day) })
	if windowDays > 0 && len(paired) > windowDays {
		paired = paired[len(paired)-windowDays:]
	}

	if len(paired) < minSamples {
		return nil
	}

	x := make([]float64, len(paired))
	y := make([]float64, len(paired))
	for i, point := range paired {
		x[i] = point.Value
		y[i] = netByDay[point.Day]
	}

	coefficient, ok := Pearson(x, y)
	if !ok || math.Abs(coefficient) < minStrength {
		return nil
	}

	if a.Sink != nil {
		a.Sink.RecordCorrelation(deed.Name, coefficient, len(paired))
	}
	return &Insight{
		DeedID:      deed.ID,
		DeedName:    deed.Name,
		Coefficient: coefficient,
		SampleCount: len(paired),
	}
}

// BestImprovement selects the comparison with the largest relative gain.
// Comparisons with a zero or negative previous total are excluded: dividing
// by zero would turn any activity at all into an infinite improvement.
// Returns nil when nothing qualifies.
func BestImprovement(comparisons []CategoryComparison) *Improvement {
	var best *Improvement
	for _, comparison := range comparisons {
		if comparison.Previous <= 0 {
			continue
		}
		percent := (comparison.Current - comparison.Previous) / comparison.Previous
		if best == nil || percent > best.Percent {
			best = &Improvement{Category: comparison.Category, Percent: percent}
		}
	}
	return best
}
