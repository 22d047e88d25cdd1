package availability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"appt-service/api"
	"appt-service/internal/models"
	"appt-service/pkg/response"
	"appt-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Resolver interface {
	Availability(ctx context.Context, subjectID string, date time.Time) (*api.AvailabilityResponse, error)
}

func New(log *slog.Logger, resolver Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedules.availability.New"

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

		date, err := models.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			log.Error("invalid date", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "date must be YYYY-MM-DD"))
			return
		}

		res, err := resolver.Availability(r.Context(), subjectID, date)
		if err != nil {
			log.Error("Failed to resolve availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to resolve availability"))
			return
		}

		log.Debug("Availability resolved", slog.String("date", res.Date), slog.String("state", res.State))
		render.JSON(w, r, res)
	}
}
