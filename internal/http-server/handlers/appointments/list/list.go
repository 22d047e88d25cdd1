package list

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
	"github.com/go-chi/render"
)

type AppointmentLister interface {
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*api.AppointmentResponse, error)
}

type Response struct {
	response.Response
	Appointments []*api.AppointmentResponse `json:"appointments"`
}

func New(log *slog.Logger, lister AppointmentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := r.URL.Query()
		filter := models.AppointmentFilter{SubjectID: q.Get("subjectId")}

		var err error
		if filter.From, err = optionalDate(q.Get("from")); err != nil {
			log.Error("invalid from", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "from must be YYYY-MM-DD"))
			return
		}
		if filter.To, err = optionalDate(q.Get("to")); err != nil {
			log.Error("invalid to", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "to must be YYYY-MM-DD"))
			return
		}

		appts, err := lister.ListAppointments(r.Context(), filter)
		if err != nil {
			log.Error("Failed to list appointments", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to list appointments"))
			return
		}

		log.Info("Appointments retrieved", slog.Int("count", len(appts)))
		if appts == nil {
			appts = []*api.AppointmentResponse{}
		}
		render.JSON(w, r, Response{Appointments: appts})
	}
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
