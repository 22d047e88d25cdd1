package editor

import (
	"context"
	"errors"
	"fmt"

	"appt-service/internal/models"

	"golang.org/x/sync/errgroup"
)

var ErrSubjectMismatch = errors.New("appointment belongs to another subject")

type Loader interface {
	GetAppointment(ctx context.Context, id string) (models.Appointment, error)
	FetchSchedule(ctx context.Context, subjectID string) (models.WeeklySchedule, error)
}

type Deps struct {
	Loader  Loader
	Gateway Gateway
	Parent  Refresher
}

// Open fetches the record and its subject's schedule concurrently and returns
// a session whose selection has been reconciled once both have arrived. A
// failed record fetch is an error. A failed schedule fetch still yields a
// session: its availability stays loading, Err carries the failure and the
// caller may retry with BeginLoad and ApplySchedule.
func Open(ctx context.Context, deps Deps, identity models.Identity, subjectID, recordID string) (*Session, error) {
	const op = "editor.Open"

	var (
		record      models.Appointment
		schedule    models.WeeklySchedule
		scheduleErr error
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		record, err = deps.Loader.GetAppointment(gctx, recordID)
		return err
	})

	g.Go(func() error {
		schedule, scheduleErr = deps.Loader.FetchSchedule(gctx, subjectID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if record.SubjectID != subjectID {
		return nil, fmt.Errorf("%s: %s: %w", op, recordID, ErrSubjectMismatch)
	}

	s := NewSession(identity, record, deps.Gateway, deps.Parent)
	token := s.BeginLoad()

	if scheduleErr != nil {
		s.FailLoad(token, scheduleErr)
		return s, nil
	}

	s.ApplySchedule(token, schedule)

	return s, nil
}
