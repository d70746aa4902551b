package domain

import "time"

// Instants are persisted and exchanged as integer epoch milliseconds.

// Millis returns t as epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TruncateMillis drops sub-millisecond precision so values survive a
// round trip through storage unchanged.
func TruncateMillis(t time.Time) time.Time {
	return FromMillis(Millis(t))
}
