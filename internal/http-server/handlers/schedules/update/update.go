package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"appt-service/api"
	"appt-service/pkg/response"
	"appt-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type ScheduleUpdater interface {
	UpdateSchedule(ctx context.Context, subjectID string, req *api.ScheduleUpdateRequest) (*api.ScheduleResponse, error)
}

type Request struct {
	api.ScheduleUpdateRequest
}

func New(log *slog.Logger, updater ScheduleUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.update.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		schedule, err := updater.UpdateSchedule(r.Context(), subjectID, &req.ScheduleUpdateRequest)

		if errors.Is(err, response.ErrInvalidSchedule) {
			log.Warn("invalid schedule", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(response.INVALID_SCHEDULE, response.Message(err, "invalid schedule")))
			return
		}

		if err != nil {
			log.Error("Failed to update schedule", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to update schedule"))
			return
		}

		log.Info("Schedule updated", slog.String("subject_id", subjectID))
		render.JSON(w, r, schedule)
	}
}
