package scheduler

import (
	"fmt"
	"time"
)

// Cadence yields the next fire time strictly after a given instant.
type Cadence interface {
	Next(after time.Time) time.Time
	String() string
}

// FixedTime fires at wall-clock aligned times. With EveryHours zero it fires
// daily at Hour:Minute; otherwise at minute Minute of every hour divisible by
// EveryHours (0 * * * * is EveryHours 1, 0 */4 * * * is EveryHours 4).
type FixedTime struct {
	Hour       int
	Minute     int
	EveryHours int
	// Loc is the time zone the wall clock is read in. Nil uses the zone of
	// the instant passed to Next.
	Loc *time.Location
}

// Daily fires once a day at hour:minute.
func Daily(hour, minute int, loc *time.Location) FixedTime {
	return FixedTime{Hour: hour, Minute: minute, Loc: loc}
}

// EveryHours fires at the top of every n-th hour.
func EveryHours(n int, loc *time.Location) FixedTime {
	return FixedTime{EveryHours: n, Loc: loc}
}

func (c FixedTime) Next(after time.Time) time.Time {
	loc := c.Loc
	if loc == nil {
		loc = after.Location()
	}
	t := after.In(loc)

	// Walk wall-clock hour slots; time.Date normalises overflow into the next
	// day. Two days covers a daily cadence plus a DST shift. The slot is
	// matched on the requested hour, so a slot inside a spring-forward gap
	// fires at the instant time.Date normalises it to instead of being lost.
	for i := 0; i <= 48; i++ {
		wall := t.Hour() + i
		candidate := time.Date(t.Year(), t.Month(), t.Day(), wall, c.Minute, 0, 0, loc)
		if candidate.After(t) && c.matchesHour(wall%24) {
			return candidate
		}
	}
	return t.Add(24 * time.Hour)
}

func (c FixedTime) matchesHour(h int) bool {
	if c.EveryHours <= 0 {
		return h == c.Hour
	}
	return h%c.EveryHours == 0
}

func (c FixedTime) String() string {
	if c.EveryHours <= 0 {
		return fmt.Sprintf("daily at %02d:%02d", c.Hour, c.Minute)
	}
	if c.EveryHours == 1 {
		return fmt.Sprintf("hourly at :%02d", c.Minute)
	}
	return fmt.Sprintf("every %dh at :%02d", c.EveryHours, c.Minute)
}

// FixedInterval fires every Every, measured from when the scheduler started.
type FixedInterval struct {
	Every time.Duration
}

func (c FixedInterval) Next(after time.Time) time.Time {
	return after.Add(c.Every)
}

func (c FixedInterval) String() string {
	return "every " + c.Every.String()
}
