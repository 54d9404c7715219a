package chaupal

import (
	"fmt"
	"html/template"
	"strconv"
	"time"
)

var NowFunc func() time.Time = time.Now

// TimeAgo returns a compact age such as "12s", "5m", "3h", "2d", "4mo" or "1y".
func TimeAgo(t time.Time, now time.Time) string {
	seconds := now.Sub(t).Seconds()

	buckets := []struct {
		size   float64
		suffix string
	}{
		{31536000, "y"},
		{2592000, "mo"},
		{86400, "d"},
		{3600, "h"},
		{60, "m"},
	}

	for _, b := range buckets {
		if interval := seconds / b.size; interval > 1 {
			return strconv.Itoa(int(interval)) + b.suffix
		}
	}

	if seconds < 0 {
		seconds = 0
	}
	return strconv.Itoa(int(seconds)) + "s"
}

// FormatCount abbreviates counters using the Indian numbering system: thousands
// as K, lakhs as L and crores as Cr.
func FormatCount(n int64) string {
	switch {
	case n >= 10000000:
		return fmt.Sprintf("%.1fCr", float64(n)/10000000)
	case n >= 100000:
		return fmt.Sprintf("%.1fL", float64(n)/100000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return strconv.FormatInt(n, 10)
}

var helpers template.FuncMap = template.FuncMap{
	"ago": func(t time.Time) string {
		return TimeAgo(t, NowFunc())
	},
	"count": FormatCount,
	"body":  renderBody,
	"score": func(f float64) string {
		return strconv.FormatFloat(f, 'f', 2, 64)
	},
}
