// Package clock keeps the simulation calendar: 60-minute hours,
// 24-hour days, 360-day years split into twelve 30-day months and
// four 90-day seasons. Time moves only when Advance is called.
package clock

import (
	"fmt"
	"sort"
)

const (
	MinutesPerHour = 60
	HoursPerDay    = 24
	DaysPerMonth   = 30
	DaysPerYear    = 360
	DaysPerSeason  = 90
	MinutesPerDay  = MinutesPerHour * HoursPerDay
	MinutesPerYear = MinutesPerDay * DaysPerYear
)

type Season string

const (
	Spring Season = "Spring"
	Summer Season = "Summer"
	Autumn Season = "Autumn"
	Winter Season = "Winter"
)

type Phase string

const (
	Morning   Phase = "Morning"
	Afternoon Phase = "Afternoon"
	Evening   Phase = "Evening"
	Night     Phase = "Night"
)

// TimeState is an immutable reading of the calendar. TotalMinutes is
// authoritative; the split fields are derived from it.
type TimeState struct {
	Minute       int   `json:"minute"`
	Hour         int   `json:"hour"`
	Day          int   `json:"day"`
	Year         int   `json:"year"`
	TotalMinutes int64 `json:"total_minutes"`
}

func (t TimeState) Season() Season {
	switch (t.Day - 1) / DaysPerSeason {
	case 0:
		return Spring
	case 1:
		return Summer
	case 2:
		return Autumn
	default:
		return Winter
	}
}

// Month returns the calendar month, 1 to 12.
func (t TimeState) Month() int {
	return (t.Day-1)/DaysPerMonth + 1
}

// DayOfMonth returns the day within the month, 1 to 30.
func (t TimeState) DayOfMonth() int {
	return (t.Day-1)%DaysPerMonth + 1
}

// Phase buckets the hour: morning 06-11, afternoon 12-17, evening
// 18-21, night otherwise.
func (t TimeState) Phase() Phase {
	switch {
	case t.Hour >= 6 && t.Hour < 12:
		return Morning
	case t.Hour >= 12 && t.Hour < 18:
		return Afternoon
	case t.Hour >= 18 && t.Hour < 22:
		return Evening
	default:
		return Night
	}
}

// HourIn reports whether the hour falls in [start, end), wrapping past
// midnight when start > end. An empty window (start == end) is false.
func (t TimeState) HourIn(start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return t.Hour >= start && t.Hour < end
	}
	return t.Hour >= start || t.Hour < end
}

func (t TimeState) String() string {
	return fmt.Sprintf("Year %d, Month %d, Day %d (%s), %02d:%02d",
		t.Year, t.Month(), t.DayOfMonth(), t.Season(), t.Hour, t.Minute)
}

func derive(total int64) TimeState {
	if total < 0 {
		total = 0
	}
	return TimeState{
		Minute:       int(total % MinutesPerHour),
		Hour:         int((total / MinutesPerHour) % HoursPerDay),
		Day:          int((total/MinutesPerDay)%DaysPerYear) + 1,
		Year:         int(total/MinutesPerYear) + 1,
		TotalMinutes: total,
	}
}

// Callback runs when the calendar reaches its scheduled minute.
type Callback func(now TimeState) error

// Clock owns the calendar state and the scheduled-callback table.
//
// Scale is a conversion factor for callers driving the clock from wall
// time; Advance itself always moves exactly the minutes it is given.
// With CatchUp off, a callback fires only when an Advance lands exactly
// on its minute: minutes stepped over fire nothing. With CatchUp on,
// every callback whose minute was passed fires once, in minute order.
type Clock struct {
	Scale   float64
	CatchUp bool

	state     TimeState
	callbacks map[int64][]Callback
}

func New() *Clock {
	return &Clock{
		Scale:     1.0,
		state:     derive(0),
		callbacks: map[int64][]Callback{},
	}
}

// At converts an absolute minute count into a calendar reading.
func At(totalMinutes int64) TimeState { return derive(totalMinutes) }

func (c *Clock) Now() TimeState { return c.state }

// Restore rewinds or forwards the calendar to a saved reading without
// firing callbacks. TotalMinutes wins over the split fields.
func (c *Clock) Restore(t TimeState) {
	c.state = derive(t.TotalMinutes)
}

// ScheduleAt registers fn for the given absolute minute. Callbacks on
// one minute fire in registration order. A callback may schedule more
// callbacks, but only minutes after the one being fired are honored.
func (c *Clock) ScheduleAt(totalMinute int64, fn Callback) {
	c.callbacks[totalMinute] = append(c.callbacks[totalMinute], fn)
}

// ScheduleIn registers fn minutes ahead of now and returns the
// absolute minute it landed on.
func (c *Clock) ScheduleIn(minutes int64, fn Callback) int64 {
	at := c.state.TotalMinutes + minutes
	c.ScheduleAt(at, fn)
	return at
}

// Pending reports how many scheduled minutes have not fired.
func (c *Clock) Pending() int { return len(c.callbacks) }

// Advance moves the calendar forward by whole minutes, firing due
// callbacks. Returned faults are callback errors or recovered panics,
// in firing order; the calendar always lands regardless of faults.
func (c *Clock) Advance(minutes int) []error {
	if minutes <= 0 {
		return nil
	}
	prev := c.state.TotalMinutes
	c.state = derive(prev + int64(minutes))

	var due []int64
	if c.CatchUp {
		for key := range c.callbacks {
			if key > prev && key <= c.state.TotalMinutes {
				due = append(due, key)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	} else if _, ok := c.callbacks[c.state.TotalMinutes]; ok {
		due = []int64{c.state.TotalMinutes}
	}

	var faults []error
	for _, key := range due {
		fns := c.callbacks[key]
		delete(c.callbacks, key)
		now := derive(key)
		for _, fn := range fns {
			if err := safeCall(fn, now); err != nil {
				faults = append(faults, fmt.Errorf("callback at minute %d: %w", key, err))
			}
		}
	}
	return faults
}

func safeCall(fn Callback, now TimeState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(now)
}

