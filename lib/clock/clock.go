package clock

import (
	"time"
)

const layout = "2006-01-02T15:04:05Z"

func Now() string {
	return Format(time.Now())
}

func Format(t time.Time) string {
	return t.UTC().Format(layout)
}

// EpochMillis returns milliseconds since unix epoch, the format used
// for persisted client-side timestamps
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
