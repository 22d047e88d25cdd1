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
	"github.com/google/uuid"
)

type AppointmentUpdater interface {
	UpdateAppointment(ctx context.Context, id string, req *api.AppointmentUpdateRequest) (*api.AppointmentResponse, error)
}

type Request struct {
	api.AppointmentUpdateRequest
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

func New(log *slog.Logger, updater AppointmentUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.update.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		appt, err := updater.UpdateAppointment(r.Context(), id, &req.AppointmentUpdateRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Warn("invalid appointment update", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, response.Message(err, "invalid appointment update")))
			return
		}

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

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Warn("slot is not available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(response.SLOT_NOT_AVAILABLE, "slot is not available"))
			return
		}

		if err != nil {
			log.Error("Failed to update appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to update appointment"))
			return
		}

		log.Info("Appointment updated", slog.String("record_id", appt.RecordID))
		render.JSON(w, r, Response{Appointment: appt})
	}
}
