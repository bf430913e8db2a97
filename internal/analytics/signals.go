package analytics

import (
	"math"
	"time"
)

const (
	// TrailingWindowDays bounds the snapshot history feeding the signal
	// calculator.
	TrailingWindowDays = 30

	// momentumMaxPoints caps the NAV series used for per-step returns.
	momentumMaxPoints = 30
	// momentumAvgReturns is how many of the most recent returns are averaged.
	momentumAvgReturns = 7

	tvlLookbackDays = 7
	oiLookbackDays  = 7

	// NeutralScore is the fallback when a signal lacks sufficient data.
	NeutralScore = 50
)

// SnapshotStat is the slice of a stored snapshot the signal calculator needs.
type SnapshotStat struct {
	CollectedAt  time.Time
	Nav          float64
	OpenInterest *float64
}

// TrailingSignals are the history-derived sub-scores.
type TrailingSignals struct {
	TvlScore      int
	MomentumScore int
	VolScore      int
	OiScore       int
}

// NeutralSignals is what an empty or too-short history scores.
func NeutralSignals() TrailingSignals {
	return TrailingSignals{
		TvlScore:      NeutralScore,
		MomentumScore: NeutralScore,
		VolScore:      NeutralScore,
		OiScore:       NeutralScore,
	}
}

// ComputeTrailingSignals derives the momentum, volatility and open-interest
// sub-scores purely from previously stored snapshots plus the current NAV.
// history must be ordered by time ascending and bounded to the trailing
// window; asOf anchors the lookback cutoffs.
func ComputeTrailingSignals(history []SnapshotStat, currentNav float64, asOf time.Time) TrailingSignals {
	if len(history) < 2 {
		return NeutralSignals()
	}

	returns := stepReturns(history, currentNav)

	return TrailingSignals{
		TvlScore:      tvlMomentumScore(tvlChangePct(history, currentNav, asOf)),
		MomentumScore: returnMomentumScore(avgRecentReturns(returns) * 100),
		VolScore:      volRegimeScore(returns),
		OiScore:       oiTrendScore(history),
	}
}

// tvlChangePct compares the current NAV to the earliest snapshot within the
// trailing 7 days, as a percentage. With no snapshot that recent the current
// NAV is compared to itself.
func tvlChangePct(history []SnapshotStat, currentNav float64, asOf time.Time) float64 {
	cutoff := asOf.Add(-tvlLookbackDays * 24 * time.Hour)
	base := currentNav
	for _, h := range history {
		if !h.CollectedAt.Before(cutoff) {
			base = h.Nav
			break
		}
	}
	if base <= 0 {
		return 0
	}
	return (currentNav - base) / base * 100
}

// stepReturns builds per-step fractional returns over the trailing NAV series
// (stored history plus the current NAV), limited to the most recent
// momentumMaxPoints points.
func stepReturns(history []SnapshotStat, currentNav float64) []float64 {
	navs := make([]float64, 0, len(history)+1)
	for _, h := range history {
		navs = append(navs, h.Nav)
	}
	navs = append(navs, currentNav)
	if len(navs) > momentumMaxPoints {
		navs = navs[len(navs)-momentumMaxPoints:]
	}

	returns := make([]float64, 0, len(navs)-1)
	for i := 1; i < len(navs); i++ {
		if navs[i-1] > 0 {
			returns = append(returns, (navs[i]-navs[i-1])/navs[i-1])
		}
	}
	return returns
}

// avgRecentReturns averages the last momentumAvgReturns returns, or all of
// them when fewer exist.
func avgRecentReturns(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	recent := returns
	if len(recent) > momentumAvgReturns {
		recent = recent[len(recent)-momentumAvgReturns:]
	}
	var sum float64
	for _, r := range recent {
		sum += r
	}
	return sum / float64(len(recent))
}

// volRegimeScore compares realized volatility of the whole return series
// against its first half. Falling volatility after a turbulent stretch scores
// best: the regime is stabilizing.
func volRegimeScore(returns []float64) int {
	if len(returns) < 2 {
		return NeutralScore
	}

	currentVol := sampleStdDev(returns)
	priorVol := sampleStdDev(returns[:len(returns)/2])

	var volTrend float64
	if priorVol > 0 {
		volTrend = (currentVol - priorVol) / priorVol
	}
	annualizedVol := currentVol * math.Sqrt(365) * 100

	switch {
	case volTrend < -0.3 && annualizedVol > 10:
		return 90
	case volTrend < -0.1:
		return 70
	case math.Abs(volTrend) < 0.1:
		return 50
	case volTrend < 0.3:
		return 35
	default:
		return 15
	}
}

// oiTrendScore compares the latest open interest against the value from ~7
// days prior, over history rows that carry a positive open interest.
func oiTrendScore(history []SnapshotStat) int {
	rows := make([]SnapshotStat, 0, len(history))
	for _, h := range history {
		if h.OpenInterest != nil && *h.OpenInterest > 0 {
			rows = append(rows, h)
		}
	}
	if len(rows) < 2 {
		return NeutralScore
	}

	latest := rows[len(rows)-1]
	cutoff := latest.CollectedAt.Add(-oiLookbackDays * 24 * time.Hour)
	past := latest
	for i := len(rows) - 2; i >= 0; i-- {
		if !rows[i].CollectedAt.After(cutoff) {
			past = rows[i]
			break
		}
	}

	changePct := (*latest.OpenInterest - *past.OpenInterest) / *past.OpenInterest * 100
	return scoreAbove(changePct, oiTiers, 15)
}

// sampleStdDev is the n-1 denominator standard deviation; zero for fewer than
// two samples.
func sampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
