package storage

import (
	"sort"
	"time"

	"github.com/vault-sentinel/internal/models"
)

// AggregateDaily collapses raw hourly snapshots into one row per UTC
// calendar day. Numeric fields are averaged; allowDeposits is the logical
// AND across the day; navAth takes the day's maximum and maxDrawdown the
// day's minimum so both keep their running-extreme semantics. Input order
// does not matter; output is ordered by day ascending.
func AggregateDaily(snapshots []*models.Snapshot) []*models.Snapshot {
	if len(snapshots) == 0 {
		return nil
	}

	byDay := make(map[time.Time][]*models.Snapshot)
	for _, s := range snapshots {
		day := s.CollectedAt.UTC().Truncate(24 * time.Hour)
		byDay[day] = append(byDay[day], s)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]*models.Snapshot, 0, len(days))
	for _, day := range days {
		out = append(out, aggregateDay(day, byDay[day]))
	}
	return out
}

func aggregateDay(day time.Time, rows []*models.Snapshot) *models.Snapshot {
	agg := &models.Snapshot{
		CollectedAt:   day,
		AllowDeposits: true,
		NavAth:        rows[0].NavAth,
		MaxDrawdown:   rows[0].MaxDrawdown,
	}

	var navSum, ddSum float64
	for _, s := range rows {
		navSum += s.Nav
		ddSum += s.DrawdownPct
		agg.AllowDeposits = agg.AllowDeposits && s.AllowDeposits
		if s.NavAth > agg.NavAth {
			agg.NavAth = s.NavAth
		}
		if s.MaxDrawdown < agg.MaxDrawdown {
			agg.MaxDrawdown = s.MaxDrawdown
		}
	}
	n := float64(len(rows))
	agg.Nav = navSum / n
	agg.DrawdownPct = ddSum / n

	agg.Pnl = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.Pnl })
	agg.Apr = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.Apr })
	agg.Volume = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.Volume })
	agg.FundingRate = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.FundingRate })
	agg.OpenInterest = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.OpenInterest })
	agg.Volume24h = avgFloat(rows, func(s *models.Snapshot) *float64 { return s.Volume24h })

	agg.DdScore = avgInt(rows, func(s *models.Snapshot) *int { return s.DdScore })
	agg.TvlScore = avgInt(rows, func(s *models.Snapshot) *int { return s.TvlScore })
	agg.MomentumScore = avgInt(rows, func(s *models.Snapshot) *int { return s.MomentumScore })
	agg.VolScore = avgInt(rows, func(s *models.Snapshot) *int { return s.VolScore })
	agg.AprScore = avgInt(rows, func(s *models.Snapshot) *int { return s.AprScore })
	agg.FundingScore = avgInt(rows, func(s *models.Snapshot) *int { return s.FundingScore })
	agg.OiScore = avgInt(rows, func(s *models.Snapshot) *int { return s.OiScore })
	agg.CompositeScore = avgInt(rows, func(s *models.Snapshot) *int { return s.CompositeScore })

	return agg
}

// avgFloat averages a nullable field over the rows that carry it; nil when
// none do.
func avgFloat(rows []*models.Snapshot, get func(*models.Snapshot) *float64) *float64 {
	var sum float64
	var n int
	for _, s := range rows {
		if v := get(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func avgInt(rows []*models.Snapshot, get func(*models.Snapshot) *int) *int {
	var sum int
	var n int
	for _, s := range rows {
		if v := get(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := (sum + n/2) / n // round half up
	return &avg
}
