package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"appt-service/api"
	"appt-service/internal/availability"
	"appt-service/internal/cache"
	"appt-service/internal/lock"
	"appt-service/internal/models"
	"appt-service/pkg/response"
	"appt-service/pkg/sl"
)

type Service struct {
	log     *slog.Logger
	store   Store
	locker  lock.Locker
	cache   ScheduleCache
	lockTTL time.Duration
}

type Store interface {
	// Schedules
	GetSchedule(ctx context.Context, subjectID string) (*models.SubjectSchedule, error)
	ReplaceSchedule(ctx context.Context, subjectID string, schedule models.WeeklySchedule) (time.Time, error)

	// Appointments
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error)
	ListTakenWindows(ctx context.Context, subjectID string, date time.Time, excludeID string) ([]models.TimeWindow, error)
	UpdateAppointment(ctx context.Context, appt *models.Appointment) error
}

// ScheduleCache is versioned per subject. Invalidate must advance the version
// so that a Set tagged with an older one is never served.
type ScheduleCache interface {
	Version(ctx context.Context, subjectID string) (int64, error)
	Get(ctx context.Context, subjectID string) (*models.SubjectSchedule, error)
	Set(ctx context.Context, sched *models.SubjectSchedule, version int64) error
	Invalidate(ctx context.Context, subjectID string) error
}

// NewService wires the business rules. schedules may be nil.
func NewService(log *slog.Logger, store Store, locker lock.Locker, schedules ScheduleCache, lockTTL time.Duration) *Service {
	return &Service{
		log:     log,
		store:   store,
		locker:  locker,
		cache:   schedules,
		lockTTL: lockTTL,
	}
}

// Schedules

// GetSchedule answers with an empty existingSetting list when the subject has
// nothing configured.
func (s *Service) GetSchedule(ctx context.Context, subjectID string) (*api.ScheduleResponse, error) {
	const op = "service.GetSchedule"

	sched, err := s.loadSchedule(ctx, subjectID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return &api.ScheduleResponse{
				ExistingSetting: []api.ScheduleSetting{},
				Days:            []api.DayConfig{},
			}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return scheduleResponse(sched), nil
}

// UpdateSchedule replaces the subject's weekly schedule. Windows are stored
// sorted; inverted and overlapping windows are rejected.
func (s *Service) UpdateSchedule(ctx context.Context, subjectID string, req *api.ScheduleUpdateRequest) (*api.ScheduleResponse, error) {
	const op = "service.UpdateSchedule"

	decoded, err := api.DaysToSchedule(req.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, invalidSchedule(err))
	}

	normalized, err := availability.Normalize(decoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, invalidSchedule(err))
	}

	updatedAt, err := s.store.ReplaceSchedule(ctx, subjectID, normalized)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, subjectID); err != nil {
			s.log.Warn("failed to invalidate schedule cache", slog.String("subject_id", subjectID), sl.Err(err))
		}
	}

	return scheduleResponse(&models.SubjectSchedule{
		SubjectID: subjectID,
		Days:      normalized,
		UpdatedAt: updatedAt,
	}), nil
}

// Availability resolves the windows offered on date and marks the ones
// already held by active appointments.
func (s *Service) Availability(ctx context.Context, subjectID string, date time.Time) (*api.AvailabilityResponse, error) {
	const op = "service.Availability"

	date = models.Day(date)

	schedule := models.WeeklySchedule{}
	sched, err := s.loadSchedule(ctx, subjectID)
	switch {
	case err == nil:
		schedule = sched.Days
	case !errors.Is(err, response.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := availability.NewResolver(schedule).Lookup(date)

	taken, err := s.store.ListTakenWindows(ctx, subjectID, date, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.AvailabilityResponse{
		Date:    date.Format(models.DateLayout),
		State:   result.State.String(),
		Windows: api.WindowsToDTO(result.Windows),
		Taken:   api.WindowsToDTO(taken),
	}, nil
}

// loadSchedule reads through the cache. The cache version is taken before the
// store read, so a write that lands in between leaves the entry unusable.
func (s *Service) loadSchedule(ctx context.Context, subjectID string) (*models.SubjectSchedule, error) {
	const op = "service.loadSchedule"

	var (
		version   int64
		cacheable bool
	)

	if s.cache != nil {
		sched, err := s.cache.Get(ctx, subjectID)
		if err == nil {
			return sched, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("schedule cache read failed", slog.String("subject_id", subjectID), sl.Err(err))
		}

		version, err = s.cache.Version(ctx, subjectID)
		if err != nil {
			s.log.Warn("schedule cache version read failed", slog.String("subject_id", subjectID), sl.Err(err))
		} else {
			cacheable = true
		}
	}

	sched, err := s.store.GetSchedule(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cacheable {
		if err := s.cache.Set(ctx, sched, version); err != nil {
			s.log.Warn("schedule cache write failed", slog.String("subject_id", subjectID), sl.Err(err))
		}
	}

	return sched, nil
}

// invalidSchedule turns a schedule validation failure into a client message.
func invalidSchedule(err error) error {
	msg := "invalid schedule"
	switch {
	case errors.Is(err, availability.ErrUnknownWeekday):
		msg = "day must be a weekday name"
	case errors.Is(err, availability.ErrDuplicateDay):
		msg = "each weekday may be listed once"
	case errors.Is(err, availability.ErrEmptyWindow):
		msg = "slot end must be after its start"
	case errors.Is(err, availability.ErrOverlap):
		msg = "slots of a day must not overlap"
	case errors.Is(err, models.ErrInvalidClock):
		msg = "slot times must be HH:MM"
	}
	return response.Invalid(response.ErrInvalidSchedule, msg, err)
}

func scheduleResponse(sched *models.SubjectSchedule) *api.ScheduleResponse {
	return &api.ScheduleResponse{
		ExistingSetting: []api.ScheduleSetting{{
			SubjectID: sched.SubjectID,
			UpdatedAt: sched.UpdatedAt,
		}},
		Days: api.ScheduleToDays(sched.Days),
	}
}

// Appointments

func (s *Service) GetAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error) {
	const op = "service.GetAppointment"

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dto := api.AppointmentToDTO(appt)
	return &dto, nil
}

func (s *Service) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*api.AppointmentResponse, error) {
	const op = "service.ListAppointments"

	appts, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		dto := api.AppointmentToDTO(a)
		result = append(result, &dto)
	}

	return result, nil
}

// UpdateAppointment applies a full edit of one record. Moving or reviving an
// appointment requires the target window to be offered on the date and not
// held by another active appointment of the same subject.
func (s *Service) UpdateAppointment(ctx context.Context, id string, req *api.AppointmentUpdateRequest) (*api.AppointmentResponse, error) {
	const op = "service.UpdateAppointment"

	if req.RecordID != "" && req.RecordID != id {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "recordId does not match the path", nil))
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "date must be YYYY-MM-DD", err))
	}

	window, err := models.ParseTimeWindow(req.TimeFrom, req.TimeTo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "timeFrom and timeTo must be HH:MM", err))
	}
	if window.End <= window.Start {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "timeTo must be after timeFrom", nil))
	}

	mode := models.Mode(req.Mode)
	if !mode.Valid() {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "mode must be online or offline", nil))
	}

	unlock, err := s.lockRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	current, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.SubjectID != "" && req.SubjectID != current.SubjectID {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid(response.ErrBadRequest, "subjectId does not match the record", nil))
	}

	moved := !date.Equal(current.Date) || window != current.Window
	reactivated := current.IsCancelled && !req.IsCancelled
	if (moved || reactivated) && !req.IsCancelled {
		if err := s.checkSlot(ctx, current.SubjectID, id, date, window); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	updated := *current
	updated.Date = date
	updated.Window = window
	updated.Mode = mode
	updated.PaymentCompleted = req.PaymentCompleted
	updated.VisitCompleted = req.VisitCompleted
	updated.IsCancelled = req.IsCancelled
	updated.Reason = req.Reason
	updated.CancelReason = req.CancelReason

	if err := s.store.UpdateAppointment(ctx, &updated); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dto := api.AppointmentToDTO(&updated)
	return &dto, nil
}

// CancelAppointment flags the record as cancelled. Records are never deleted.
func (s *Service) CancelAppointment(ctx context.Context, id string, reason string) (*api.AppointmentResponse, error) {
	const op = "service.CancelAppointment"

	unlock, err := s.lockRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if appt.IsCancelled && appt.CancelReason == reason {
		dto := api.AppointmentToDTO(appt)
		return &dto, nil
	}

	appt.IsCancelled = true
	appt.CancelReason = reason

	if err := s.store.UpdateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dto := api.AppointmentToDTO(appt)
	return &dto, nil
}

func (s *Service) checkSlot(ctx context.Context, subjectID, recordID string, date time.Time, window models.TimeWindow) error {
	sched, err := s.loadSchedule(ctx, subjectID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return response.ErrSlotNotAvailable
		}
		return err
	}

	if !availability.Contains(availability.Resolve(date, sched.Days), window) {
		return response.ErrSlotNotAvailable
	}

	taken, err := s.store.ListTakenWindows(ctx, subjectID, date, recordID)
	if err != nil {
		return err
	}
	for _, t := range taken {
		if t.Overlaps(window) {
			return response.ErrSlotNotAvailable
		}
	}

	return nil
}

func (s *Service) lockRecord(ctx context.Context, id string) (func(), error) {
	lockKey := fmt.Sprintf("appointment:%s", id)

	token, locked, err := s.locker.Lock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock error: %w", err)
	}
	if !locked {
		return nil, response.ErrLocked
	}

	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("failed to release record lock", slog.String("record_id", id), sl.Err(err))
		}
	}, nil
}
