// Package availability answers which time windows can be booked on a given
// calendar day and keeps a chosen window stable across recomputation.
package availability

import (
	"time"

	"appt-service/internal/models"
)

// Resolve returns the windows configured for the weekday of date, in the
// configured order. An inactive or missing day yields an empty slice.
func Resolve(date time.Time, schedule models.WeeklySchedule) []models.TimeWindow {
	day, ok := schedule[date.Weekday()]
	if !ok || !day.IsActive || len(day.Windows) == 0 {
		return []models.TimeWindow{}
	}

	windows := make([]models.TimeWindow, len(day.Windows))
	copy(windows, day.Windows)

	return windows
}

type State int

const (
	Loading State = iota
	Unavailable
	Available
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unavailable:
		return "unavailable"
	case Available:
		return "available"
	default:
		return "unknown"
	}
}

// Result separates "schedule not loaded yet" from "nothing bookable".
type Result struct {
	State   State
	Windows []models.TimeWindow
}

// Resolver wraps Resolve with knowledge of whether a schedule has arrived.
// The zero value is a resolver that is still loading.
type Resolver struct {
	schedule models.WeeklySchedule
	loaded   bool
}

func NewResolver(schedule models.WeeklySchedule) Resolver {
	return Resolver{schedule: schedule, loaded: true}
}

func (r Resolver) Loaded() bool {
	return r.loaded
}

func (r Resolver) Lookup(date time.Time) Result {
	if !r.loaded {
		return Result{State: Loading}
	}

	windows := Resolve(date, r.schedule)
	if len(windows) == 0 {
		return Result{State: Unavailable, Windows: windows}
	}

	return Result{State: Available, Windows: windows}
}

// Selectable reports whether a date picker should accept date.
func (r Resolver) Selectable(date time.Time) bool {
	return r.Lookup(date).State == Available
}
