// Package analytics holds the pure computation pipeline: NAV series
// normalization, trailing-window signals, and the composite condition score.
// Nothing in this package touches the network or the database, so the same
// functions serve the live ingestion path, the historical backfill, and the
// bulk recompute job.
package analytics

import (
	"fmt"
	"time"
)

// SourceTimeframe is the canonical provider series. Other timeframes measure
// coarser resamplings of the same vault and are only used for gap-filling.
const SourceTimeframe = "allTime"

// Point is one (timestamp, value) sample of a provider series.
type Point struct {
	Ts    time.Time
	Value float64
}

// Timeframe is one named slice of provider history: a NAV series and a
// parallel PnL series.
type Timeframe struct {
	AccountValueHistory []Point
	PnlHistory          []Point
}

// VaultState is the normalized view of the provider's all-time history.
type VaultState struct {
	NavHistory      []Point
	PnlHistory      []Point
	AthHistory      []float64
	DrawdownHistory []float64

	CurrentNav      float64
	CurrentPnl      *float64
	CurrentAth      float64
	CurrentDrawdown float64
	MaxDrawdown     float64
}

// NormalizeVaultState converts raw timeframe series into an ordered, filtered
// NAV/PnL history with ATH and drawdown derived in one forward pass. The
// "allTime" timeframe is mandatory: substituting a coarser timeframe would
// splice series that measure different underlying quantities.
func NormalizeVaultState(timeframes map[string]Timeframe) (*VaultState, error) {
	tf, ok := timeframes[SourceTimeframe]
	if !ok {
		return nil, fmt.Errorf("timeframe %q missing from payload", SourceTimeframe)
	}

	nav := make([]Point, 0, len(tf.AccountValueHistory))
	for _, p := range tf.AccountValueHistory {
		if p.Value > 0 {
			nav = append(nav, p)
		}
	}
	if len(nav) == 0 {
		return nil, fmt.Errorf("timeframe %q has no positive NAV points", SourceTimeframe)
	}

	// PnL points predating the first retained NAV point have no matching NAV
	// context and are dropped.
	start := nav[0].Ts
	pnl := make([]Point, 0, len(tf.PnlHistory))
	for _, p := range tf.PnlHistory {
		if !p.Ts.Before(start) {
			pnl = append(pnl, p)
		}
	}

	ath, dd, maxDd := DrawdownPass(nav)

	state := &VaultState{
		NavHistory:      nav,
		PnlHistory:      pnl,
		AthHistory:      ath,
		DrawdownHistory: dd,
		CurrentNav:      nav[len(nav)-1].Value,
		CurrentAth:      ath[len(ath)-1],
		CurrentDrawdown: dd[len(dd)-1],
		MaxDrawdown:     maxDd,
	}
	if len(pnl) > 0 {
		last := pnl[len(pnl)-1].Value
		state.CurrentPnl = &last
	}
	return state, nil
}

// DrawdownPass computes, in a single forward pass over a chronological NAV
// series, the running all-time-high, the drawdown from that high at each
// point, and the worst drawdown seen anywhere in the series.
func DrawdownPass(nav []Point) (ath []float64, drawdown []float64, maxDrawdown float64) {
	ath = make([]float64, len(nav))
	drawdown = make([]float64, len(nav))
	var high float64
	for i, p := range nav {
		if p.Value > high {
			high = p.Value
		}
		ath[i] = high
		if high > 0 {
			drawdown[i] = (p.Value - high) / high
		}
		if drawdown[i] < maxDrawdown {
			maxDrawdown = drawdown[i]
		}
	}
	return ath, drawdown, maxDrawdown
}
