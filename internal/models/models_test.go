package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", NewClock(9, 0), false},
		{"17:45", NewClock(17, 45), false},
		{"00:00", 0, false},
		{"23:59", NewClock(23, 59), false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidClock) {
				t.Errorf("ParseClock(%q): expected ErrInvalidClock, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClockString(t *testing.T) {
	if got := NewClock(9, 5).String(); got != "09:05" {
		t.Errorf("expected 09:05, got %s", got)
	}
}

func TestTimeWindowString(t *testing.T) {
	w, err := ParseTimeWindow("14:00", "17:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.String() != "14:00-17:00" {
		t.Errorf("expected 14:00-17:00, got %s", w.String())
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 4, 15, 30, 0, 0, time.FixedZone("X", 3*3600))
	got := Day(in)
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}

func TestModeValid(t *testing.T) {
	if !ModeOnline.Valid() || !ModeOffline.Valid() {
		t.Error("expected online and offline to be valid")
	}
	if Mode("phone").Valid() {
		t.Error("expected phone to be invalid")
	}
}

func TestTimeWindowOverlaps(t *testing.T) {
	morning := TimeWindow{Start: NewClock(9, 0), End: NewClock(12, 0)}

	tests := []struct {
		name  string
		other TimeWindow
		want  bool
	}{
		{"same", morning, true},
		{"inside", TimeWindow{Start: NewClock(10, 0), End: NewClock(11, 0)}, true},
		{"partial", TimeWindow{Start: NewClock(11, 30), End: NewClock(13, 0)}, true},
		{"touching", TimeWindow{Start: NewClock(12, 0), End: NewClock(13, 0)}, false},
		{"disjoint", TimeWindow{Start: NewClock(14, 0), End: NewClock(17, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := morning.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps(%s) = %v, want %v", tt.other, got, tt.want)
			}
			if got := tt.other.Overlaps(morning); got != tt.want {
				t.Errorf("Overlaps is not symmetric for %s", tt.other)
			}
		})
	}
}
