package utils

import "time"

func NowUTC() time.Time {
	return time.Now().UTC()
}

// ISO8601 formats t in UTC with millisecond precision, the shape browsers parse with Date().
func ISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
