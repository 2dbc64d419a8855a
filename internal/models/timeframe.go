package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe is one fixed aggregation bucket length, encoded as <integer><unit>
// with unit one of s, m, h, d, w. The sentinel TimeframeTick means "no
// aggregation, pass canonical ticks through".
type Timeframe string

// TimeframeTick is the pass-through sentinel.
const TimeframeTick Timeframe = "tick"

// SupportedTimeframes is the closed set of timeframes the pipeline accepts,
// in ascending bucket-length order with the tick sentinel first.
var SupportedTimeframes = []Timeframe{
	TimeframeTick,
	"1s", "5s", "15s", "30s",
	"1m", "5m", "15m", "30m",
	"1h", "4h", "12h",
	"1d", "1w",
}

// ParseTimeframe validates s against the supported set.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range SupportedTimeframes {
		if Timeframe(s) == tf {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q (supported: %s)", s, timeframeList())
}

func timeframeList() string {
	names := make([]string, len(SupportedTimeframes))
	for i, tf := range SupportedTimeframes {
		names[i] = string(tf)
	}
	return strings.Join(names, ", ")
}

// IsTick reports whether the timeframe is the pass-through sentinel.
func (tf Timeframe) IsTick() bool { return tf == TimeframeTick }

// Duration returns the bucket length. The tick sentinel has zero duration.
func (tf Timeframe) Duration() time.Duration {
	if tf.IsTick() {
		return 0
	}
	n, unit := tf.split()
	switch unit {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour
	}
	return 0
}

func (tf Timeframe) split() (int64, byte) {
	s := string(tf)
	if len(s) < 2 {
		return 0, 0
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, 0
	}
	return n, s[len(s)-1]
}

// Truncate maps t down to the start of its containing bucket. Buckets for
// second/minute/hour/day units are anchored at epoch-aligned multiples of the
// bucket length (day buckets therefore start at UTC midnight). Week buckets
// are calendar-derived and truncate to Monday 00:00 UTC.
func (tf Timeframe) Truncate(t time.Time) time.Time {
	if tf.IsTick() {
		return t
	}
	t = t.UTC()
	_, unit := tf.split()
	if unit == 'w' {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Monday = 0 offset; Sunday sits at the end of its week.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	}
	d := tf.Duration()
	if d <= 0 {
		// A Timeframe built outside ParseTimeframe can carry a malformed
		// value with zero duration; leave the instant untouched rather
		// than divide by it.
		return t
	}
	return t.Add(-time.Duration(t.UnixNano() % int64(d)))
}

// FitsDailyMerge reports whether the timeframe may be merged into the
// persisted store. Daily source files are merged one calendar day at a time,
// so any bucket longer than 24 hours could be split across merge calls and
// leave an incomplete bar behind; those are rejected up front.
func (tf Timeframe) FitsDailyMerge() bool {
	if tf.IsTick() {
		return true
	}
	return tf.Duration() <= 24*time.Hour
}

// DatabaseTimeframes returns the subset of the supported timeframes that are
// legal for a persisted-store run.
func DatabaseTimeframes() []Timeframe {
	var out []Timeframe
	for _, tf := range SupportedTimeframes {
		if tf.FitsDailyMerge() {
			out = append(out, tf)
		}
	}
	return out
}
