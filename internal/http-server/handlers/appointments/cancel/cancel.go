package cancel

import (
	"context"
	"errors"
	"io"
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

type AppointmentCanceller interface {
	CancelAppointment(ctx context.Context, id string, reason string) (*api.AppointmentResponse, error)
}

type Request struct {
	api.AppointmentCancelRequest
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

func New(log *slog.Logger, canceller AppointmentCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.cancel.New"

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

		// the body is optional; an empty cancel reason is allowed
		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		appt, err := canceller.CancelAppointment(r.Context(), id, req.CancelReason)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "resource not found"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Warn("appointment is being edited")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(response.LOCKED, "appointment is being edited by another request"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to cancel appointment"))
			return
		}

		log.Info("Appointment cancelled", slog.String("record_id", appt.RecordID))
		render.JSON(w, r, Response{Appointment: appt})
	}
}
