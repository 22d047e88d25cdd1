package editor

import (
	"context"
	"fmt"
	"sync"

	"appt-service/internal/models"
)

type Lister interface {
	ListAppointments(ctx context.Context, subjectID string) ([]models.Appointment, error)
}

// List is the appointment list a session is opened from. It is never patched
// locally; it only changes by refetching.
type List struct {
	mu sync.Mutex

	source    Lister
	subjectID string

	items      []models.Appointment
	lastErr    string
	generation uint64
}

func NewList(source Lister, subjectID string) *List {
	return &List{source: source, subjectID: subjectID}
}

// Refresh refetches the list. When refreshes overlap, only the most recently
// started one is applied.
func (l *List) Refresh(ctx context.Context) error {
	const op = "editor.List.Refresh"

	l.mu.Lock()
	l.generation++
	token := l.generation
	l.mu.Unlock()

	items, err := l.source.ListAppointments(ctx, l.subjectID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if token != l.generation {
		return nil
	}

	if err != nil {
		l.lastErr = err.Error()
		return fmt.Errorf("%s: %w", op, err)
	}

	l.items = items
	l.lastErr = ""

	return nil
}

func (l *List) Items() []models.Appointment {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]models.Appointment(nil), l.items...)
}

func (l *List) Find(id string) (models.Appointment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.items {
		if a.ID == id {
			return a, true
		}
	}
	return models.Appointment{}, false
}

func (l *List) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastErr
}
