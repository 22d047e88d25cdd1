package get

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
	"github.com/google/uuid"
)

type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id string) (*api.AppointmentResponse, error)
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

func New(log *slog.Logger, getter AppointmentGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			log.Error("invalid record id", slog.String("id", id))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.INVALID_ID, "invalid record id"))
			return
		}

		appt, err := getter.GetAppointment(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to get appointment"))
			return
		}

		log.Info("Appointment retrieved", slog.String("record_id", appt.RecordID))
		render.JSON(w, r, Response{Appointment: appt})
	}
}
