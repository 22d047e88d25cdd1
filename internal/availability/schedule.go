package availability

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"appt-service/internal/models"
)

var (
	ErrUnknownWeekday = errors.New("unknown weekday")
	ErrDuplicateDay   = errors.New("weekday configured more than once")
	ErrEmptyWindow    = errors.New("window end must be after start")
	ErrOverlap        = errors.New("windows overlap")
)

type DayEntry struct {
	Day      string
	IsActive bool
	Windows  []models.TimeWindow
}

// Build assembles a schedule from a list of day entries without reordering
// anything. Each weekday may appear once.
func Build(entries []DayEntry) (models.WeeklySchedule, error) {
	const op = "availability.Build"

	schedule := make(models.WeeklySchedule, len(entries))
	for _, e := range entries {
		wd, ok := ParseWeekday(e.Day)
		if !ok {
			return nil, fmt.Errorf("%s: %q: %w", op, e.Day, ErrUnknownWeekday)
		}
		if _, dup := schedule[wd]; dup {
			return nil, fmt.Errorf("%s: %s: %w", op, wd, ErrDuplicateDay)
		}

		windows := make([]models.TimeWindow, len(e.Windows))
		copy(windows, e.Windows)
		schedule[wd] = models.DayConfig{IsActive: e.IsActive, Windows: windows}
	}

	return schedule, nil
}

// Normalize returns a copy of schedule with every day's windows sorted by
// start. Empty or inverted windows and overlapping windows are rejected;
// windows that only touch at a boundary are allowed.
func Normalize(schedule models.WeeklySchedule) (models.WeeklySchedule, error) {
	const op = "availability.Normalize"

	out := make(models.WeeklySchedule, len(schedule))
	for wd, day := range schedule {
		windows := make([]models.TimeWindow, len(day.Windows))
		copy(windows, day.Windows)

		for _, w := range windows {
			if w.End <= w.Start {
				return nil, fmt.Errorf("%s: %s %s: %w", op, wd, w, ErrEmptyWindow)
			}
		}

		sort.SliceStable(windows, func(i, j int) bool {
			if windows[i].Start == windows[j].Start {
				return windows[i].End < windows[j].End
			}
			return windows[i].Start < windows[j].Start
		})

		for i := 1; i < len(windows); i++ {
			if windows[i].Start < windows[i-1].End {
				return nil, fmt.Errorf("%s: %s %s and %s: %w", op, wd, windows[i-1], windows[i], ErrOverlap)
			}
		}

		out[wd] = models.DayConfig{IsActive: day.IsActive, Windows: windows}
	}

	return out, nil
}

// Entries flattens a schedule into day entries ordered Sunday..Saturday.
func Entries(schedule models.WeeklySchedule) []DayEntry {
	entries := make([]DayEntry, 0, len(schedule))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day, ok := schedule[wd]
		if !ok {
			continue
		}
		entries = append(entries, DayEntry{
			Day:      wd.String(),
			IsActive: day.IsActive,
			Windows:  day.Windows,
		})
	}
	return entries
}

// ParseWeekday accepts the spellings schedules are stored with:
// "mon", "Monday", "1", "0" and so on (0 = Sunday, 7 = Sunday).
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(s); err == nil {
		switch {
		case n >= 0 && n <= 6:
			return time.Weekday(n), true
		case n == 7:
			return time.Sunday, true
		default:
			return 0, false
		}
	}

	switch s {
	case "sun", "sunday":
		return time.Sunday, true
	case "mon", "monday":
		return time.Monday, true
	case "tue", "tues", "tuesday":
		return time.Tuesday, true
	case "wed", "wednesday":
		return time.Wednesday, true
	case "thu", "thur", "thursday":
		return time.Thursday, true
	case "fri", "friday":
		return time.Friday, true
	case "sat", "saturday":
		return time.Saturday, true
	default:
		return 0, false
	}
}
