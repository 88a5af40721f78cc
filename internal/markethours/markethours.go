// Package markethours reports which trading sessions are open for a region.
package markethours

import (
	"time"
	_ "time/tzdata"

	"TickerPulse/internal/domain/models"
)

// Session is a named part of a trading day.
type Session string

const (
	PreMarket   Session = "pre_market"
	MarketOpen  Session = "market_open"
	MidDay      Session = "mid_day"
	MarketClose Session = "market_close"
	AfterHours  Session = "after_hours"
	Regular     Session = "regular"
	AlwaysOpen  Session = "always_open"
	Closed      Session = "closed"
)

var (
	eastern = mustLocation("America/New_York", -5*3600)
	kolkata = mustLocation("Asia/Kolkata", 5*3600+1800)
)

func mustLocation(name string, offset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offset)
	}
	return loc
}

type window struct {
	from, to int // minutes since midnight, half-open
	session  Session
}

var usWindows = []window{
	{from: 4 * 60, to: 9*60 + 30, session: PreMarket},
	{from: 9*60 + 30, to: 11 * 60, session: MarketOpen},
	{from: 11 * 60, to: 14 * 60, session: MidDay},
	{from: 14 * 60, to: 16 * 60, session: MarketClose},
	{from: 16 * 60, to: 20 * 60, session: AfterHours},
}

var indiaWindows = []window{
	{from: 9*60 + 15, to: 15*60 + 30, session: Regular},
}

// SessionAt returns the session a region is in at the given instant.
func SessionAt(region models.Region, now time.Time) Session {
	switch region {
	case models.RegionCrypto:
		return AlwaysOpen
	case models.RegionIN:
		return lookup(now.In(kolkata), indiaWindows)
	default:
		return lookup(now.In(eastern), usWindows)
	}
}

// IsOpen is true for any session other than Closed.
func IsOpen(region models.Region, now time.Time) bool {
	return SessionAt(region, now) != Closed
}

// AnyOpen is true when at least one of the regions has an open session.
func AnyOpen(now time.Time, regions []models.Region) bool {
	for _, r := range regions {
		if IsOpen(r, now) {
			return true
		}
	}
	return false
}

func lookup(local time.Time, windows []window) Session {
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Closed
	}
	m := local.Hour()*60 + local.Minute()
	for _, w := range windows {
		if m >= w.from && m < w.to {
			return w.session
		}
	}
	return Closed
}
