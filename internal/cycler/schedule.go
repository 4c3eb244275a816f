package cycler

import (
	"fmt"
	"time"
)

// Period is the rotation policy of a cycler.
type Period int

const (
	PeriodSeconds Period = iota
	PeriodMinutes
	PeriodHours
	PeriodStartup
	PeriodHourly
	PeriodDaily
	PeriodChronological
)

var periodNames = []string{"seconds", "minutes", "hours", "startup", "hourly", "daily", "chronological"}

func (p Period) String() string {
	if p < 0 || int(p) >= len(periodNames) {
		return fmt.Sprintf("Period(%d)", int(p))
	}
	return periodNames[p]
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p >= 0 && int(p) < len(periodNames)
}

// NextDelay returns how long after now the next rotation is due. ok is false
// when the period never re-arms (startup).
func NextDelay(p Period, timer uint, now time.Time) (d time.Duration, ok bool) {
	if timer == 0 {
		timer = 1
	}
	switch p {
	case PeriodSeconds:
		return time.Duration(timer) * time.Second, true
	case PeriodMinutes:
		return time.Duration(timer) * time.Minute, true
	case PeriodHours:
		return time.Duration(timer) * time.Hour, true
	case PeriodHourly, PeriodChronological:
		return untilNextHour(now), true
	case PeriodDaily:
		return untilMidnight(now), true
	}
	return 0, false
}

func untilNextHour(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, now.Location())
	return next.Sub(now)
}

func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}

// chronologicalIndex maps the hour of day onto a listing of n images, using
// at most 24 of them.
func chronologicalIndex(hour, n int) int {
	if n <= 0 {
		return -1
	}
	n = min(n, 24)
	return hour * n / 24
}

// Clock abstracts time for scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
