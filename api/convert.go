package api

import (
	"fmt"

	"appt-service/internal/availability"
	"appt-service/internal/models"
)

func WindowToDTO(w models.TimeWindow) TimeWindow {
	return TimeWindow{Start: w.Start.String(), End: w.End.String()}
}

func WindowsToDTO(ws []models.TimeWindow) []TimeWindow {
	out := make([]TimeWindow, 0, len(ws))
	for _, w := range ws {
		out = append(out, WindowToDTO(w))
	}
	return out
}

// DaysToSchedule decodes the wire list of days, keeping window order.
func DaysToSchedule(days []DayConfig) (models.WeeklySchedule, error) {
	const op = "api.DaysToSchedule"

	entries := make([]availability.DayEntry, 0, len(days))
	for _, d := range days {
		windows := make([]models.TimeWindow, 0, len(d.Slots))
		for _, s := range d.Slots {
			w, err := models.ParseTimeWindow(s.Start, s.End)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", op, d.Day, err)
			}
			windows = append(windows, w)
		}
		entries = append(entries, availability.DayEntry{Day: d.Day, IsActive: d.IsActive, Windows: windows})
	}

	schedule, err := availability.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return schedule, nil
}

func ScheduleToDays(schedule models.WeeklySchedule) []DayConfig {
	entries := availability.Entries(schedule)
	days := make([]DayConfig, 0, len(entries))
	for _, e := range entries {
		days = append(days, DayConfig{
			Day:      e.Day,
			IsActive: e.IsActive,
			Slots:    WindowsToDTO(e.Windows),
		})
	}
	return days
}

func AppointmentToDTO(a *models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		RecordID:         a.ID,
		SubjectID:        a.SubjectID,
		PatientID:        a.PatientID,
		Date:             a.Date.Format(models.DateLayout),
		TimeFrom:         a.Window.Start.String(),
		TimeTo:           a.Window.End.String(),
		Mode:             string(a.Mode),
		PaymentCompleted: a.PaymentCompleted,
		VisitCompleted:   a.VisitCompleted,
		IsCancelled:      a.IsCancelled,
		Reason:           a.Reason,
		CancelReason:     a.CancelReason,
		UpdatedAt:        a.UpdatedAt,
	}
}

func AppointmentFromDTO(r AppointmentResponse) (models.Appointment, error) {
	const op = "api.AppointmentFromDTO"

	date, err := models.ParseDate(r.Date)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	window, err := models.ParseTimeWindow(r.TimeFrom, r.TimeTo)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Appointment{
		ID:               r.RecordID,
		SubjectID:        r.SubjectID,
		PatientID:        r.PatientID,
		Date:             date,
		Window:           window,
		Mode:             models.Mode(r.Mode),
		PaymentCompleted: r.PaymentCompleted,
		VisitCompleted:   r.VisitCompleted,
		IsCancelled:      r.IsCancelled,
		Reason:           r.Reason,
		CancelReason:     r.CancelReason,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func AppointmentToUpdate(a models.Appointment) AppointmentUpdateRequest {
	return AppointmentUpdateRequest{
		RecordID:         a.ID,
		SubjectID:        a.SubjectID,
		PatientID:        a.PatientID,
		Date:             a.Date.Format(models.DateLayout),
		TimeFrom:         a.Window.Start.String(),
		TimeTo:           a.Window.End.String(),
		Mode:             string(a.Mode),
		PaymentCompleted: a.PaymentCompleted,
		VisitCompleted:   a.VisitCompleted,
		IsCancelled:      a.IsCancelled,
		Reason:           a.Reason,
		CancelReason:     a.CancelReason,
	}
}
