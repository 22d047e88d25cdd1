package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var ErrInvalidClock = errors.New("invalid clock value")

// Clock is a wall-clock minute of the day, 0..1439.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	const op = "models.ParseClock"

	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q: %w", op, s, ErrInvalidClock)
	}

	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// TimeWindow is one bookable interval of a day. Two windows are the same
// window when both bounds are equal.
type TimeWindow struct {
	Start Clock
	End   Clock
}

func ParseTimeWindow(start, end string) (TimeWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}

	e, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}

	return TimeWindow{Start: s, End: e}, nil
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Overlaps reports whether w and o share at least one minute. Windows that
// only touch at a boundary do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start < o.End && o.Start < w.End
}

type DayConfig struct {
	IsActive bool
	Windows  []TimeWindow
}

// WeeklySchedule holds at most one DayConfig per weekday.
type WeeklySchedule map[time.Weekday]DayConfig

// SubjectSchedule is a stored schedule together with its setting row.
type SubjectSchedule struct {
	SubjectID string         `json:"subjectId"`
	Days      WeeklySchedule `json:"days"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

func (m Mode) Valid() bool {
	return m == ModeOnline || m == ModeOffline
}

type Appointment struct {
	ID               string
	SubjectID        string
	PatientID        string
	Date             time.Time
	Window           TimeWindow
	Mode             Mode
	PaymentCompleted bool
	VisitCompleted   bool
	IsCancelled      bool
	Reason           string
	CancelReason     string
	UpdatedAt        time.Time
}

type AppointmentFilter struct {
	SubjectID string
	From      *time.Time
	To        *time.Time
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	const op = "models.ParseDate"

	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

// Identity is the signed-in user an edit session acts for.
type Identity struct {
	UserID string
	Role   string
}
