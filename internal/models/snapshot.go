package models

import (
	"time"
)

// Snapshot is the sole persisted entity: one row per distinct UTC hour of
// vault state, with derived drawdown metrics and condition scores.
type Snapshot struct {
	ID          int64     `json:"id" db:"id"`
	CollectedAt time.Time `json:"collectedAt" db:"collected_at"`

	Nav           float64  `json:"nav" db:"nav"`
	Pnl           *float64 `json:"pnl" db:"pnl"`
	Apr           *float64 `json:"apr" db:"apr"`
	Volume        *float64 `json:"volume" db:"volume"`
	AllowDeposits bool     `json:"allowDeposits" db:"allow_deposits"`

	// NavAth is the running all-time-high NAV as of this row; monotonically
	// non-decreasing across time-ordered snapshots.
	NavAth      float64 `json:"navAth" db:"nav_ath"`
	DrawdownPct float64 `json:"drawdownPct" db:"drawdown_pct"`
	// MaxDrawdown is the worst drawdown seen so far; monotonically
	// non-increasing across time-ordered snapshots.
	MaxDrawdown float64 `json:"maxDrawdown" db:"max_drawdown"`

	// Market context, independent of the vault's own NAV. Absent for
	// backfilled historical rows.
	FundingRate  *float64 `json:"fundingRate" db:"funding_rate"`
	OpenInterest *float64 `json:"openInterest" db:"open_interest"`
	Volume24h    *float64 `json:"volume24h" db:"volume_24h"`

	// Sub-scores in [0,100]. Nullable: unscored rows may exist transiently
	// after bulk historical seeding.
	DdScore        *int `json:"ddScore" db:"dd_score"`
	TvlScore       *int `json:"tvlScore" db:"tvl_score"`
	MomentumScore  *int `json:"momentumScore" db:"momentum_score"`
	VolScore       *int `json:"volScore" db:"vol_score"`
	AprScore       *int `json:"aprScore" db:"apr_score"`
	FundingScore   *int `json:"fundingScore" db:"funding_score"`
	OiScore        *int `json:"oiScore" db:"oi_score"`
	CompositeScore *int `json:"compositeScore" db:"composite_score"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HourKey returns the dedup key: CollectedAt truncated to the UTC hour.
func (s *Snapshot) HourKey() time.Time {
	return s.CollectedAt.UTC().Truncate(time.Hour)
}
