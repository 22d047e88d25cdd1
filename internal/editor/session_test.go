package editor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"appt-service/internal/availability"
	"appt-service/internal/client"
	"appt-service/internal/models"
)

// ---------- Helpers ----------

// 2024-01-15 is a Monday.
var (
	monday     = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tuesday    = monday.AddDate(0, 0, 1)
	nextMonday = monday.AddDate(0, 0, 7)
	morning    = models.TimeWindow{Start: models.NewClock(9, 0), End: models.NewClock(12, 0)}
	afternoon  = models.TimeWindow{Start: models.NewClock(14, 0), End: models.NewClock(17, 0)}
	doctor     = models.Identity{UserID: "doc-1", Role: "doctor"}
)

func clinicSchedule() models.WeeklySchedule {
	return models.WeeklySchedule{
		time.Monday:  {IsActive: true, Windows: []models.TimeWindow{morning, afternoon}},
		time.Tuesday: {IsActive: false, Windows: []models.TimeWindow{morning}},
	}
}

func bookedRecord() models.Appointment {
	return models.Appointment{
		ID:        "rec-1",
		SubjectID: "doc-1",
		PatientID: "pat-1",
		Date:      monday,
		Window:    afternoon,
		Mode:      models.ModeOffline,
		Reason:    "follow-up",
	}
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls int
	who   models.Identity
	got   models.Appointment
	block chan struct{}
}

func (g *fakeGateway) UpdateAppointment(_ context.Context, who models.Identity, appt models.Appointment) error {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.who = who
	g.got = appt
	return g.err
}

type countingLister struct {
	mu    sync.Mutex
	calls int
	items []models.Appointment
}

func (l *countingLister) ListAppointments(_ context.Context, _ string) ([]models.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.items, nil
}

func openSession(t *testing.T, gw Gateway, parent Refresher) *Session {
	t.Helper()
	s := NewSession(doctor, bookedRecord(), gw, parent)
	if !s.ApplySchedule(s.BeginLoad(), clinicSchedule()) {
		t.Fatal("schedule was not applied")
	}
	return s
}

// ---------- Loading ----------

func TestSession_LoadingBeforeSchedule(t *testing.T) {
	s := NewSession(doctor, bookedRecord(), &fakeGateway{}, nil)

	if s.State() != Idle {
		t.Errorf("expected Idle, got %s", s.State())
	}
	if res := s.Availability(); res.State != availability.Loading {
		t.Errorf("expected Loading, got %s", res.State)
	}
	if s.CanSubmit() {
		t.Error("must not submit before the schedule has loaded")
	}
}

func TestSession_StaleScheduleIsDropped(t *testing.T) {
	s := NewSession(doctor, bookedRecord(), &fakeGateway{}, nil)

	first := s.BeginLoad()
	second := s.BeginLoad()

	if !s.ApplySchedule(second, clinicSchedule()) {
		t.Fatal("latest load should apply")
	}
	if s.ApplySchedule(first, models.WeeklySchedule{}) {
		t.Error("stale load must be dropped")
	}
	if res := s.Availability(); res.State != availability.Available || len(res.Windows) != 2 {
		t.Errorf("stale load overwrote state: %+v", res)
	}
}

func TestSession_FailLoad(t *testing.T) {
	s := NewSession(doctor, bookedRecord(), &fakeGateway{}, nil)
	token := s.BeginLoad()

	if !s.FailLoad(token, errors.New("schedule service unreachable")) {
		t.Fatal("expected failure to be recorded")
	}
	if s.Err() != "schedule service unreachable" {
		t.Errorf("unexpected error message %q", s.Err())
	}
	if s.State() != Idle {
		t.Errorf("expected Idle, got %s", s.State())
	}
}

// ---------- Selection ----------

func TestSession_KeepsOriginalWindowOnSameDay(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	if s.State() != Editing {
		t.Errorf("expected Editing, got %s", s.State())
	}
	w, ok := s.Selection()
	if !ok || w != afternoon {
		t.Errorf("expected %s, got %s (ok=%v)", afternoon, w, ok)
	}
	if !s.CanSubmit() {
		t.Error("expected submittable session")
	}
}

func TestSession_InactiveDayBlocksSubmit(t *testing.T) {
	gw := &fakeGateway{}
	s := openSession(t, gw, nil)

	if s.Selectable(tuesday) {
		t.Error("tuesday must not be selectable")
	}
	if err := s.SetDate(tuesday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := s.Availability()
	if res.State != availability.Unavailable || len(res.Windows) != 0 {
		t.Errorf("expected no windows, got %+v", res)
	}
	if _, ok := s.Selection(); ok {
		t.Error("expected no selection")
	}
	if s.CanSubmit() {
		t.Error("expected CanSubmit false")
	}

	if err := s.Submit(context.Background()); !errors.Is(err, ErrCannotSubmit) {
		t.Errorf("expected ErrCannotSubmit, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("gateway must not be called, got %d calls", gw.calls)
	}
}

func TestSession_ReconcilesAgainstOriginalNotLastClick(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	if err := s.Select(morning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetDate(nextMonday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, _ := s.Selection()
	if w != afternoon {
		t.Errorf("expected original window %s, got %s", afternoon, w)
	}
}

func TestSession_FallsBackToFirstWindow(t *testing.T) {
	record := bookedRecord()
	record.Window = models.TimeWindow{Start: models.NewClock(18, 0), End: models.NewClock(19, 0)}

	s := NewSession(doctor, record, &fakeGateway{}, nil)
	s.ApplySchedule(s.BeginLoad(), clinicSchedule())

	w, ok := s.Selection()
	if !ok || w != morning {
		t.Errorf("expected %s, got %s", morning, w)
	}
	if s.Working().Window != morning {
		t.Errorf("working copy should carry the selection, got %s", s.Working().Window)
	}
}

func TestSession_SelectRejectsUnofferedWindow(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	err := s.Select(models.TimeWindow{Start: models.NewClock(7, 0), End: models.NewClock(8, 0)})
	if !errors.Is(err, ErrWindowNotOffered) {
		t.Errorf("expected ErrWindowNotOffered, got %v", err)
	}
}

func TestSession_NoDate(t *testing.T) {
	record := bookedRecord()
	record.Date = time.Time{}

	s := NewSession(doctor, record, &fakeGateway{}, nil)
	s.ApplySchedule(s.BeginLoad(), clinicSchedule())

	if s.CanSubmit() {
		t.Error("expected CanSubmit false without a date")
	}
	if err := s.SetDate(monday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.CanSubmit() {
		t.Error("expected CanSubmit true once a bookable date is set")
	}
}

// ---------- Fields ----------

func TestSession_SetField(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	steps := []struct {
		field Field
		value any
	}{
		{FieldPaymentCompleted, "on"},
		{FieldVisitCompleted, true},
		{FieldReason, "annual check"},
		{FieldMode, "online"},
	}
	for _, st := range steps {
		if err := s.SetField(st.field, st.value); err != nil {
			t.Fatalf("SetField(%s): %v", st.field, err)
		}
	}

	w := s.Working()
	if !w.PaymentCompleted || !w.VisitCompleted || w.Reason != "annual check" || w.Mode != models.ModeOnline {
		t.Errorf("unexpected working copy: %+v", w)
	}
}

func TestSession_SetFieldErrors(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	if err := s.SetField(FieldPaymentCompleted, 1); !errors.Is(err, ErrFieldType) {
		t.Errorf("expected ErrFieldType, got %v", err)
	}
	if err := s.SetField(FieldPaymentCompleted, "maybe"); !errors.Is(err, ErrFieldType) {
		t.Errorf("expected ErrFieldType, got %v", err)
	}
	if err := s.SetField(FieldReason, true); !errors.Is(err, ErrFieldType) {
		t.Errorf("expected ErrFieldType, got %v", err)
	}
	if err := s.SetField("doctorNotes", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestSession_CancelWithEmptyReasonIsSubmittable(t *testing.T) {
	gw := &fakeGateway{}
	s := openSession(t, gw, nil)

	if s.CancelReasonRequired() {
		t.Error("reason should not be required before cancelling")
	}
	if err := s.SetCancelled(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.CancelReasonRequired() {
		t.Error("expected cancel reason to be required")
	}

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gw.got.IsCancelled || gw.got.CancelReason != "" {
		t.Errorf("unexpected submitted record: %+v", gw.got)
	}
}

// ---------- Submission ----------

func TestSession_SubmitSuccessRefetchesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lister := &countingLister{}
	list := NewList(lister, "doc-1")
	c := client.New(srv.URL, time.Second, doctor)

	s := openSession(t, c, list)
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.State() != Success {
		t.Errorf("expected Success, got %s", s.State())
	}
	if lister.calls != 1 {
		t.Errorf("expected exactly one refetch, got %d", lister.calls)
	}
}

func TestSession_SubmitFailureShowsServerMessage(t *testing.T) {
	var userID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = r.Header.Get("X-User-Id")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"db down"}`)
	}))
	defer srv.Close()

	lister := &countingLister{}
	s := openSession(t, client.New(srv.URL, time.Second, models.Identity{}), NewList(lister, "doc-1"))

	err := s.Submit(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var subErr *client.SubmissionError
	if !errors.As(err, &subErr) || subErr.Status != http.StatusInternalServerError {
		t.Errorf("expected wrapped *client.SubmissionError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "editor.Session.Submit: ") {
		t.Errorf("expected error to carry the operation, got %q", err.Error())
	}
	if userID != doctor.UserID {
		t.Errorf("expected request on behalf of %q, got %q", doctor.UserID, userID)
	}

	if s.State() != Failed {
		t.Errorf("expected Failed, got %s", s.State())
	}
	if s.Err() != "db down" {
		t.Errorf("expected %q, got %q", "db down", s.Err())
	}
	if lister.calls != 0 {
		t.Errorf("failed submission must not refetch, got %d", lister.calls)
	}

	if err := s.SetField(FieldReason, "retry"); err != nil {
		t.Fatalf("session should stay editable: %v", err)
	}
	if s.State() != Editing {
		t.Errorf("expected Editing after edit, got %s", s.State())
	}
	if !s.CanSubmit() {
		t.Error("expected retry to be possible")
	}
}

func TestSession_SuccessIsTerminal(t *testing.T) {
	s := openSession(t, &fakeGateway{}, nil)

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.SetDate(nextMonday); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.Submit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if s.ApplySchedule(s.BeginLoad(), clinicSchedule()) {
		t.Error("schedule must not apply to a finished session")
	}
}

func TestSession_SubmitSendsSelection(t *testing.T) {
	gw := &fakeGateway{}
	s := openSession(t, gw, nil)

	if err := s.Select(morning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.got.Window != morning || !gw.got.Date.Equal(monday) || gw.got.ID != "rec-1" {
		t.Errorf("unexpected submitted record: %+v", gw.got)
	}
	if gw.who != doctor {
		t.Errorf("expected submission on behalf of %+v, got %+v", doctor, gw.who)
	}
}

func TestSession_InFlightBlocksEdits(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	s := openSession(t, gw, nil)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != Submitting {
		if time.Now().After(deadline) {
			t.Fatal("submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if s.CanSubmit() {
		t.Error("expected CanSubmit false while in flight")
	}
	if err := s.SetField(FieldReason, "x"); !errors.Is(err, ErrSubmitting) {
		t.Errorf("expected ErrSubmitting, got %v", err)
	}

	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Success {
		t.Errorf("expected Success, got %s", s.State())
	}
}

func TestSession_DiscardDropsLateCompletion(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	lister := &countingLister{}
	s := openSession(t, gw, NewList(lister, "doc-1"))

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()

	for s.State() != Submitting {
		time.Sleep(time.Millisecond)
	}
	s.Discard()
	close(gw.block)

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if s.State() != Discarded {
		t.Errorf("expected Discarded, got %s", s.State())
	}
	if lister.calls != 0 {
		t.Errorf("discarded session must not refetch, got %d", lister.calls)
	}
}
