package get

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"appt-service/api"

	"github.com/go-chi/chi/v5"
)

type stubGetter struct {
	resp *api.ScheduleResponse
	err  error
}

func (s stubGetter) GetSchedule(_ context.Context, _ string) (*api.ScheduleResponse, error) {
	return s.resp, s.err
}

func serve(getter ScheduleGetter) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/schedules/{subjectId}", New(slog.New(slog.NewTextHandler(io.Discard, nil)), getter))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schedules/doc-1", nil))
	return rec
}

func TestGet(t *testing.T) {
	rec := serve(stubGetter{resp: &api.ScheduleResponse{
		ExistingSetting: []api.ScheduleSetting{{SubjectID: "doc-1"}},
		Days: []api.DayConfig{{Day: "Monday", IsActive: true, Slots: []api.TimeWindow{
			{Start: "14:00", End: "17:00"}, {Start: "09:00", End: "12:00"},
		}}},
	}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body api.ScheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.ExistingSetting) != 1 || body.Days[0].Slots[0].Start != "14:00" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestGet_Failure(t *testing.T) {
	rec := serve(stubGetter{err: errors.New("db down")})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
