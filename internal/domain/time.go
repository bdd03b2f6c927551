package domain

import "time"

// Millisecond spans used throughout window arithmetic.
const (
	MillisPerMinute int64 = 60_000
	MillisPerHour   int64 = 3_600_000
	MillisPerDay    int64 = 86_400_000
)

// UTCDay returns the UTC calendar date of a millisecond timestamp
// in YYYY-MM-DD form. Daily partitions (deciles, daily percentiles)
// key on this value.
func UTCDay(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}

// UTCHour returns the UTC hour of day (0..23) of a millisecond timestamp.
func UTCHour(tsMs int64) int {
	return time.UnixMilli(tsMs).UTC().Hour()
}
