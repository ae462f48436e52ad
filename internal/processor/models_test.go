package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBucket_SameDayStableAcrossTimezones(t *testing.T) {
	utc := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	tokyo := utc.In(time.FixedZone("JST", 9*60*60))

	assert.Equal(t, dayBucket(utc), dayBucket(tokyo))
}

func TestDayBucket_AdvancesAtMidnightUTC(t *testing.T) {
	before := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)
	after := time.Date(2026, 8, 1, 0, 0, 1, 0, time.UTC)

	assert.Equal(t, dayBucket(before)+1, dayBucket(after))
}
