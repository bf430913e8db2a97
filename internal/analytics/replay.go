package analytics

import (
	"time"
)

// ReplayPoint is one input sample of a chronological replay. Market-context
// fields are nil for historical sources that never carried them, which makes
// the corresponding sub-scores neutral.
type ReplayPoint struct {
	Ts           time.Time
	Nav          float64
	Pnl          *float64
	Apr          *float64
	FundingRate  *float64
	OpenInterest *float64
}

// ReplayRow is a replayed point with its derived running state and scores.
type ReplayRow struct {
	ReplayPoint
	NavAth      float64
	DrawdownPct float64
	MaxDrawdown float64
	Scores      ScoreSet
}

// ReplaySeries walks a chronological NAV series and derives, for every point,
// the running ATH/drawdown state and the full score set exactly as the live
// ingestion path would have computed them at that point in time. The walk is
// strictly sequential: each point's state depends on everything before it.
func ReplaySeries(points []ReplayPoint) []ReplayRow {
	rows := make([]ReplayRow, 0, len(points))
	history := make([]SnapshotStat, 0, len(points))

	var ath, maxDd float64
	for _, p := range points {
		if p.Nav > ath {
			ath = p.Nav
		}
		var dd float64
		if ath > 0 {
			dd = (p.Nav - ath) / ath
		}
		if dd < maxDd {
			maxDd = dd
		}

		signals := ComputeTrailingSignals(TrailingWindow(history, p.Ts), p.Nav, p.Ts)
		scores := ComputeScores(ScoreInput{
			Drawdown:    dd,
			Signals:     signals,
			Apr:         p.Apr,
			FundingRate: p.FundingRate,
		})

		rows = append(rows, ReplayRow{
			ReplayPoint: p,
			NavAth:      ath,
			DrawdownPct: dd,
			MaxDrawdown: maxDd,
			Scores:      scores,
		})
		history = append(history, SnapshotStat{
			CollectedAt:  p.Ts,
			Nav:          p.Nav,
			OpenInterest: p.OpenInterest,
		})
	}
	return rows
}

// TrailingWindow returns the suffix of an ascending history that falls inside
// the trailing signal window ending at asOf.
func TrailingWindow(history []SnapshotStat, asOf time.Time) []SnapshotStat {
	cutoff := asOf.Add(-TrailingWindowDays * 24 * time.Hour)
	for i, h := range history {
		if !h.CollectedAt.Before(cutoff) {
			return history[i:]
		}
	}
	return nil
}
