// Package metrics computes performance statistics over the account status
// series a backtest run produces.
package metrics

import (
	"math"
	"sort"
	"time"

	"defi-backtest-lab/internal/domain"
)

const minutesPerYear = 365 * 24 * 60

// RunMetrics summarizes one run's net value series.
type RunMetrics struct {
	InitialNetValue float64
	FinalNetValue   float64

	// TotalReturn is final/initial - 1.
	TotalReturn float64
	// AnnualizedReturn extrapolates the total return over a 365-day year
	// using the bar interval and count.
	AnnualizedReturn float64

	// ReturnMean/ReturnStddev describe the per-bar simple returns.
	ReturnMean   float64
	ReturnStddev float64
	ReturnP10    float64
	ReturnMedian float64
	ReturnP90    float64

	// MaxDrawdown is the worst peak-to-trough decline as a fraction of the
	// peak net value.
	MaxDrawdown float64
}

// Compute derives RunMetrics from a status series with the given bar
// interval. Fewer than two statuses yield zero metrics.
func Compute(statuses []domain.AccountStatus, interval time.Duration) RunMetrics {
	n := len(statuses)
	if n == 0 {
		return RunMetrics{}
	}

	values := make([]float64, n)
	for i, s := range statuses {
		values[i] = s.NetValue.InexactFloat64()
	}

	m := RunMetrics{
		InitialNetValue: values[0],
		FinalNetValue:   values[n-1],
		MaxDrawdown:     computeMaxDrawdown(values),
	}
	if n < 2 || values[0] == 0 {
		return m
	}
	m.TotalReturn = values[n-1]/values[0] - 1

	elapsedMinutes := float64(n-1) * interval.Minutes()
	if elapsedMinutes > 0 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, minutesPerYear/elapsedMinutes) - 1
	}

	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	m.ReturnMean = computeMean(returns)
	m.ReturnStddev = computeStddev(returns, m.ReturnMean)

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	m.ReturnP10 = computePercentile(sorted, 0.10)
	m.ReturnMedian = computePercentile(sorted, 0.50)
	m.ReturnP90 = computePercentile(sorted, 0.90)
	return m
}

// CountActions tallies actions by type tag.
func CountActions(actions []domain.Action) map[domain.ActionType]int {
	out := make(map[domain.ActionType]int, len(actions))
	for _, a := range actions {
		out[a.Type]++
	}
	return out
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation over a pre-sorted slice.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown finds the worst relative peak-to-trough decline.
func computeMaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	maxDrawdown := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}
	return maxDrawdown
}
