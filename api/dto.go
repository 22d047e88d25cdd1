package api

import "time"

type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DayConfig struct {
	Day      string       `json:"day"`
	IsActive bool         `json:"isActive"`
	Slots    []TimeWindow `json:"slots"`
}

// ScheduleSetting marks a subject as having a configured schedule. An empty
// ExistingSetting list means nothing is configured.
type ScheduleSetting struct {
	SubjectID string    `json:"subjectId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ScheduleResponse struct {
	ExistingSetting []ScheduleSetting `json:"existingSetting"`
	Days            []DayConfig       `json:"days"`
}

type ScheduleUpdateRequest struct {
	Days []DayConfig `json:"days"`
}

type AvailabilityResponse struct {
	Date    string       `json:"date"`
	State   string       `json:"state"`
	Windows []TimeWindow `json:"windows"`
	Taken   []TimeWindow `json:"taken"`
}

type AppointmentUpdateRequest struct {
	RecordID         string `json:"recordId"`
	SubjectID        string `json:"subjectId"`
	PatientID        string `json:"patientId,omitempty"`
	Date             string `json:"date"`
	TimeFrom         string `json:"timeFrom"`
	TimeTo           string `json:"timeTo"`
	Mode             string `json:"mode"`
	PaymentCompleted bool   `json:"paymentCompleted"`
	VisitCompleted   bool   `json:"visitCompleted"`
	IsCancelled      bool   `json:"isCancelled"`
	Reason           string `json:"reason"`
	CancelReason     string `json:"cancelReason,omitempty"`
}

type AppointmentCancelRequest struct {
	CancelReason string `json:"cancelReason"`
}

type AppointmentResponse struct {
	RecordID         string    `json:"recordId"`
	SubjectID        string    `json:"subjectId"`
	PatientID        string    `json:"patientId,omitempty"`
	Date             string    `json:"date"`
	TimeFrom         string    `json:"timeFrom"`
	TimeTo           string    `json:"timeTo"`
	Mode             string    `json:"mode"`
	PaymentCompleted bool      `json:"paymentCompleted"`
	VisitCompleted   bool      `json:"visitCompleted"`
	IsCancelled      bool      `json:"isCancelled"`
	Reason           string    `json:"reason"`
	CancelReason     string    `json:"cancelReason,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
