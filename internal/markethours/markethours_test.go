package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"TickerPulse/internal/domain/models"
)

func TestSessionAt_US(t *testing.T) {
	// 2024-03-13 is a Wednesday.
	at := func(h, m int) time.Time { return time.Date(2024, 3, 13, h, m, 0, 0, eastern) }

	cases := []struct {
		name string
		when time.Time
		want Session
	}{
		{"overnight", at(3, 59), Closed},
		{"pre market", at(4, 0), PreMarket},
		{"bell", at(9, 30), MarketOpen},
		{"mid day", at(12, 0), MidDay},
		{"close", at(15, 59), MarketClose},
		{"after hours", at(16, 0), AfterHours},
		{"late", at(20, 0), Closed},
		{"saturday", time.Date(2024, 3, 16, 10, 0, 0, 0, eastern), Closed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SessionAt(models.RegionUS, tc.when))
		})
	}
}

func TestSessionAt_India(t *testing.T) {
	open := time.Date(2024, 3, 13, 9, 15, 0, 0, kolkata)
	assert.Equal(t, Regular, SessionAt(models.RegionIN, open))
	assert.Equal(t, Closed, SessionAt(models.RegionIN, open.Add(-time.Minute)))
	assert.Equal(t, Closed, SessionAt(models.RegionIN, time.Date(2024, 3, 13, 15, 30, 0, 0, kolkata)))
}

func TestAnyOpen(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

	assert.False(t, AnyOpen(sunday, []models.Region{models.RegionUS, models.RegionIN}))
	assert.True(t, AnyOpen(sunday, []models.Region{models.RegionUS, models.RegionCrypto}))
	assert.False(t, AnyOpen(sunday, nil))
}
