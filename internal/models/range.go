package models

import (
	"time"
)

// TimeRange is the query window for snapshot reads.
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range90d TimeRange = "90d"
	Range1y  TimeRange = "1y"
	RangeAll TimeRange = "all"
)

// Resolution is the granularity of returned series.
type Resolution string

const (
	ResolutionAuto   Resolution = "auto"
	ResolutionHourly Resolution = "hourly"
	ResolutionDaily  Resolution = "daily"
)

var rangeDurations = map[TimeRange]time.Duration{
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
	Range90d: 90 * 24 * time.Hour,
	Range1y:  365 * 24 * time.Hour,
}

// ParseTimeRange validates a range string. An empty string defaults to "all".
func ParseTimeRange(s string) (TimeRange, bool) {
	if s == "" {
		return RangeAll, true
	}
	switch r := TimeRange(s); r {
	case Range24h, Range7d, Range30d, Range90d, Range1y, RangeAll:
		return r, true
	default:
		return "", false
	}
}

// ParseResolution validates a resolution string. An empty string defaults to
// "auto".
func ParseResolution(s string) (Resolution, bool) {
	if s == "" {
		return ResolutionAuto, true
	}
	switch r := Resolution(s); r {
	case ResolutionAuto, ResolutionHourly, ResolutionDaily:
		return r, true
	default:
		return "", false
	}
}

// Cutoff maps a range to its cutoff timestamp relative to now. The second
// return is false for "all", which has no cutoff.
func (r TimeRange) Cutoff(now time.Time) (time.Time, bool) {
	d, ok := rangeDurations[r]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

// Resolve collapses "auto" into a concrete resolution for the given range:
// hourly for the short windows, daily for everything longer.
func (res Resolution) Resolve(r TimeRange) Resolution {
	if res != ResolutionAuto {
		return res
	}
	switch r {
	case Range24h, Range7d:
		return ResolutionHourly
	default:
		return ResolutionDaily
	}
}
