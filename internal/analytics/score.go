package analytics

import (
	"math"
)

// Composite weights. They must sum to 1.0; TestCompositeWeightsSumToOne pins
// that down.
const (
	weightDd       = 0.25
	weightTvl      = 0.15
	weightMomentum = 0.15
	weightVol      = 0.15
	weightApr      = 0.05
	weightFunding  = 0.15
	weightOi       = 0.10
)

// tier is one (bound, score) step of an ordered threshold table.
type tier struct {
	bound float64
	score int
}

// Bucket tables. Each cascaded threshold rule lives in exactly one table so a
// scoring rule is a data change, not a conditional rewrite.
var (
	// Percent change of NAV vs the 7-day-old value.
	tvlTiers = []tier{{3, 10}, {1, 25}, {0, 40}, {-1, 55}, {-3, 70}, {-5, 85}}

	// Average per-step return, in percent.
	momentumTiers = []tier{{0.3, 10}, {0.1, 25}, {0, 40}, {-0.1, 55}, {-0.3, 70}, {-1, 85}}

	// Percent change of open interest vs the 7-day-old value.
	oiTiers = []tier{{10, 90}, {3, 70}, {-3, 50}, {-5, 30}}

	// Absolute drawdown in percent; deeper drawdowns score worse.
	ddTiers = []tier{{0.1, 5}, {0.5, 15}, {1, 25}, {2, 40}, {3, 55}, {5, 70}, {7, 85}, {9, 92}}

	// APR in percent; unusually high yield reads as risk premium.
	aprTiers = []tier{{40, 15}, {25, 30}, {15, 50}, {8, 65}, {3, 75}}

	// Funding rate in basis points.
	fundingTiers = []tier{{5, 90}, {2, 75}, {0.5, 60}, {-0.5, 45}, {-2, 25}}
)

// scoreAbove returns the score of the first tier whose bound v strictly
// exceeds, else the fallback. Boundary values fall through to the next tier.
func scoreAbove(v float64, tiers []tier, fallback int) int {
	for _, t := range tiers {
		if v > t.bound {
			return t.score
		}
	}
	return fallback
}

// scoreBelow is the mirror lookup for tables keyed by upper bounds.
func scoreBelow(v float64, tiers []tier, fallback int) int {
	for _, t := range tiers {
		if v < t.bound {
			return t.score
		}
	}
	return fallback
}

func tvlMomentumScore(changePct float64) int {
	return scoreAbove(changePct, tvlTiers, 95)
}

func returnMomentumScore(avgReturnPct float64) int {
	return scoreAbove(avgReturnPct, momentumTiers, 95)
}

// DrawdownScore buckets the current drawdown (a fraction <= 0).
func DrawdownScore(drawdown float64) int {
	return scoreBelow(math.Abs(drawdown)*100, ddTiers, 98)
}

// AprScore buckets the fractional APR; nil means the value is unknown and
// scores neutral.
func AprScore(apr *float64) int {
	if apr == nil {
		return NeutralScore
	}
	return scoreAbove(*apr*100, aprTiers, 90)
}

// FundingScore buckets the funding rate, expressed in basis points; nil means
// market context was unavailable and scores neutral.
func FundingScore(rate *float64) int {
	if rate == nil {
		return NeutralScore
	}
	return scoreAbove(*rate*10000, fundingTiers, 15)
}

// ScoreInput is everything the composite scorer consumes. Nil pointers mean
// the corresponding component lacked data and default to neutral.
type ScoreInput struct {
	Drawdown    float64
	Signals     TrailingSignals
	Apr         *float64
	FundingRate *float64
}

// ScoreSet is the seven sub-scores plus the composite.
type ScoreSet struct {
	Dd        int
	Tvl       int
	Momentum  int
	Vol       int
	Apr       int
	Funding   int
	Oi        int
	Composite int
}

// ComputeScores combines the sub-scores into the composite. It is the single
// scoring entry point for the live ingestion, backfill and recompute paths.
func ComputeScores(in ScoreInput) ScoreSet {
	s := ScoreSet{
		Dd:       DrawdownScore(in.Drawdown),
		Tvl:      in.Signals.TvlScore,
		Momentum: in.Signals.MomentumScore,
		Vol:      in.Signals.VolScore,
		Apr:      AprScore(in.Apr),
		Funding:  FundingScore(in.FundingRate),
		Oi:       in.Signals.OiScore,
	}
	s.Composite = composite(s)
	return s
}

func composite(s ScoreSet) int {
	return int(math.Round(
		weightDd*float64(s.Dd) +
			weightTvl*float64(s.Tvl) +
			weightMomentum*float64(s.Momentum) +
			weightVol*float64(s.Vol) +
			weightApr*float64(s.Apr) +
			weightFunding*float64(s.Funding) +
			weightOi*float64(s.Oi)))
}
