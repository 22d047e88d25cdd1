// Package editor holds the working copy of one appointment while it is being
// edited and drives it through submission.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"appt-service/internal/availability"
	"appt-service/internal/models"
)

var (
	ErrSessionClosed    = errors.New("edit session is finished")
	ErrSubmitting       = errors.New("submission in progress")
	ErrCannotSubmit     = errors.New("appointment cannot be submitted")
	ErrUnknownField     = errors.New("unknown field")
	ErrFieldType        = errors.New("wrong value type for field")
	ErrWindowNotOffered = errors.New("window is not offered on the selected date")
)

type State int

const (
	Idle State = iota
	Editing
	Submitting
	Success
	Failed
	Discarded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

type Field string

const (
	FieldMode             Field = "mode"
	FieldPaymentCompleted Field = "paymentCompleted"
	FieldVisitCompleted   Field = "visitCompleted"
	FieldIsCancelled      Field = "isCancelled"
	FieldReason           Field = "reason"
	FieldCancelReason     Field = "cancelReason"
)

// Gateway pushes a finished working copy to the record store on behalf of
// the session's user.
type Gateway interface {
	UpdateAppointment(ctx context.Context, who models.Identity, appt models.Appointment) error
}

// Refresher is the list view that owns the session. It refetches after a
// successful submission.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Session is the form state of one appointment edit. All methods are safe to
// call from the goroutines that deliver network completions.
type Session struct {
	mu sync.Mutex

	identity models.Identity
	gateway  Gateway
	parent   Refresher

	original models.Appointment
	working  models.Appointment
	dateSet  bool

	resolver  availability.Resolver
	available availability.Result
	selection *models.TimeWindow

	state   State
	lastErr string

	loadGen   uint64
	submitGen uint64
}

func NewSession(identity models.Identity, record models.Appointment, gateway Gateway, parent Refresher) *Session {
	s := &Session{
		identity: identity,
		gateway:  gateway,
		parent:   parent,
		original: record,
		working:  record,
		dateSet:  !record.Date.IsZero(),
		state:    Idle,
	}
	if s.dateSet {
		s.working.Date = models.Day(record.Date)
	}
	s.recompute()

	return s
}

// BeginLoad returns the token a schedule fetch must present when it
// completes. Starting another load invalidates earlier tokens.
func (s *Session) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadGen++
	return s.loadGen
}

// ApplySchedule installs a fetched schedule and reconciles the selection
// against the record's original window. Completions carrying an outdated
// token, or arriving after the session finished, are dropped.
func (s *Session) ApplySchedule(token uint64, schedule models.WeeklySchedule) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.loadGen || s.finished() {
		return false
	}

	s.resolver = availability.NewResolver(schedule)
	s.recompute()
	if s.state == Idle {
		s.state = Editing
	}

	return true
}

// FailLoad records a schedule load failure for display.
func (s *Session) FailLoad(token uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.loadGen || s.finished() {
		return false
	}

	s.lastErr = err.Error()
	return true
}

// SetField assigns one scalar field of the working copy. Boolean fields take
// a bool or a checkbox string, text fields take a string.
func (s *Session) SetField(field Field, value any) error {
	const op = "editor.Session.SetField"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch field {
	case FieldPaymentCompleted, FieldVisitCompleted, FieldIsCancelled:
		b, err := toBool(value)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, field, err)
		}
		switch field {
		case FieldPaymentCompleted:
			s.working.PaymentCompleted = b
		case FieldVisitCompleted:
			s.working.VisitCompleted = b
		case FieldIsCancelled:
			s.working.IsCancelled = b
		}

	case FieldReason, FieldCancelReason:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: %s: %w", op, field, ErrFieldType)
		}
		if field == FieldReason {
			s.working.Reason = str
		} else {
			s.working.CancelReason = str
		}

	case FieldMode:
		switch v := value.(type) {
		case models.Mode:
			s.working.Mode = v
		case string:
			s.working.Mode = models.Mode(v)
		default:
			return fmt.Errorf("%s: %s: %w", op, field, ErrFieldType)
		}

	default:
		return fmt.Errorf("%s: %q: %w", op, field, ErrUnknownField)
	}

	s.touch()
	return nil
}

// SetCancelled toggles the cancellation flag. A cancelled appointment asks
// for a cancel reason, but an empty one is still submittable.
func (s *Session) SetCancelled(flag bool) error {
	return s.SetField(FieldIsCancelled, flag)
}

func (s *Session) CancelReasonRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.working.IsCancelled
}

// SetDate moves the appointment to another day. Whether the day is
// pickable is decided by the picker through Selectable.
func (s *Session) SetDate(date time.Time) error {
	const op = "editor.Session.SetDate"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.working.Date = models.Day(date)
	s.dateSet = true
	s.recompute()
	s.touch()

	return nil
}

// Select picks one of the windows currently offered.
func (s *Session) Select(w models.TimeWindow) error {
	const op = "editor.Session.Select"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !availability.Contains(s.available.Windows, w) {
		return fmt.Errorf("%s: %s: %w", op, w, ErrWindowNotOffered)
	}

	s.selection = &w
	s.working.Window = w
	s.touch()

	return nil
}

func (s *Session) Selectable(date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolver.Selectable(date)
}

func (s *Session) Availability() availability.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.available
	res.Windows = append([]models.TimeWindow(nil), s.available.Windows...)
	return res
}

func (s *Session) Selection() (models.TimeWindow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selection == nil {
		return models.TimeWindow{}, false
	}
	return *s.selection, true
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canSubmit()
}

// Submit sends the working copy through the gateway. On success the session
// is finished and the parent list refetches once; on failure the message is
// kept and the session stays editable.
func (s *Session) Submit(ctx context.Context) error {
	const op = "editor.Session.Submit"

	s.mu.Lock()
	if s.finished() {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}
	if !s.canSubmit() {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrCannotSubmit)
	}

	s.state = Submitting
	s.submitGen++
	token := s.submitGen
	record := s.working
	record.Window = *s.selection
	who := s.identity
	s.mu.Unlock()

	err := s.gateway.UpdateAppointment(ctx, who, record)

	s.mu.Lock()
	if token != s.submitGen || s.state != Submitting {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}

	if err != nil {
		s.state = Failed
		s.lastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}

	s.state = Success
	s.lastErr = ""
	parent := s.parent
	s.mu.Unlock()

	if parent != nil {
		// a failed refetch is shown by the list itself
		_ = parent.Refresh(ctx)
	}

	return nil
}

// Discard abandons the working copy. Pending completions are ignored.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Success {
		return
	}
	s.state = Discarded
	s.loadGen++
	s.submitGen++
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Err returns the message of the last load or submission failure.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

func (s *Session) Working() models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.working
}

// recompute refreshes availability for the working date and reconciles the
// selection against the original window, never against the last click.
func (s *Session) recompute() {
	if !s.dateSet {
		s.available = availability.Result{State: availability.Loading}
		if s.resolver.Loaded() {
			s.available.State = availability.Unavailable
		}
		s.selection = nil
		return
	}

	s.available = s.resolver.Lookup(s.working.Date)

	previous := s.original.Window
	w, ok := availability.Reconcile(s.available.Windows, &previous)
	if !ok {
		s.selection = nil
		return
	}

	s.selection = &w
	s.working.Window = w
}

func (s *Session) canSubmit() bool {
	if s.state == Submitting || s.finished() {
		return false
	}
	return s.dateSet && s.selection != nil
}

func (s *Session) finished() bool {
	return s.state == Success || s.state == Discarded
}

func (s *Session) editable() error {
	switch {
	case s.finished():
		return ErrSessionClosed
	case s.state == Submitting:
		return ErrSubmitting
	default:
		return nil
	}
}

func (s *Session) touch() {
	if s.state == Idle || s.state == Failed {
		s.state = Editing
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on":
			return true, nil
		case "off", "":
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, ErrFieldType
		}
		return b, nil
	default:
		return false, ErrFieldType
	}
}
