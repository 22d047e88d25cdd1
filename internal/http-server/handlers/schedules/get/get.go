package get

import (
	"context"
	"log/slog"
	"net/http"

	"appt-service/api"
	"appt-service/pkg/response"
	"appt-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type ScheduleGetter interface {
	GetSchedule(ctx context.Context, subjectID string) (*api.ScheduleResponse, error)
}

func New(log *slog.Logger, getter ScheduleGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		subjectID := chi.URLParam(r, "subjectId")
		if subjectID == "" {
			log.Error("subjectId is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.INVALID_ID, "subjectId is required"))
			return
		}

		schedule, err := getter.GetSchedule(r.Context(), subjectID)
		if err != nil {
			log.Error("Failed to get schedule", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to get schedule"))
			return
		}

		log.Info("Schedule retrieved", slog.String("subject_id", subjectID), slog.Int("days", len(schedule.Days)))
		render.JSON(w, r, schedule)
	}
}
