// Package client talks to the appointment service over its REST interface.
// Every response is normalised right after the transport call so callers
// only ever see models types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"appt-service/api"
	"appt-service/internal/models"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

const maxErrorBody = 64 << 10

var ErrUnexpectedShape = errors.New("unexpected response shape")

// SubmissionError is returned when an update is not accepted. Message is
// what the form shows to the user.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	return e.Message
}

// LoadError is returned when a read fails.
type LoadError struct {
	Status  int
	Message string
}

func (e *LoadError) Error() string {
	return e.Message
}

type Client struct {
	baseURL   string
	http      *http.Client
	identity  models.Identity
	requestID func() string
}

func New(baseURL string, timeout time.Duration, identity models.Identity) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, identity)
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client, identity models.Identity) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      httpClient,
		identity:  identity,
		requestID: uuid.NewString,
	}
}

// FetchSchedule returns the subject's weekly schedule. A subject without a
// configured schedule yields an empty schedule, which makes every date
// unbookable.
func (c *Client) FetchSchedule(ctx context.Context, subjectID string) (models.WeeklySchedule, error) {
	const op = "client.FetchSchedule"

	resp, err := c.do(ctx, c.identity, http.MethodGet, "/schedules/"+url.PathEscape(subjectID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Message: err.Error()})
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		status, msg := readError(resp)
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Status: status, Message: msg})
	}

	var body api.ScheduleResponse
	if err := render.DecodeJSON(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	if len(body.ExistingSetting) == 0 {
		return models.WeeklySchedule{}, nil
	}

	schedule, err := api.DaysToSchedule(body.Days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return schedule, nil
}

func (c *Client) Availability(ctx context.Context, subjectID string, date time.Time) (*api.AvailabilityResponse, error) {
	const op = "client.Availability"

	path := "/schedules/" + url.PathEscape(subjectID) + "/availability?date=" + date.Format(models.DateLayout)

	resp, err := c.do(ctx, c.identity, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Message: err.Error()})
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		status, msg := readError(resp)
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Status: status, Message: msg})
	}

	var body api.AvailabilityResponse
	if err := render.DecodeJSON(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	return &body, nil
}

func (c *Client) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	const op = "client.GetAppointment"

	resp, err := c.do(ctx, c.identity, http.MethodGet, "/appointments/"+url.PathEscape(id), nil)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, &LoadError{Message: err.Error()})
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		status, msg := readError(resp)
		return models.Appointment{}, fmt.Errorf("%s: %w", op, &LoadError{Status: status, Message: msg})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: read: %w", op, err)
	}

	dto, err := decodeObject[api.AppointmentResponse](raw, "appointment", "data")
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	appt, err := api.AppointmentFromDTO(dto)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("%s: %w", op, err)
	}

	return appt, nil
}

func (c *Client) ListAppointments(ctx context.Context, subjectID string) ([]models.Appointment, error) {
	const op = "client.ListAppointments"

	resp, err := c.do(ctx, c.identity, http.MethodGet, "/appointments?subjectId="+url.QueryEscape(subjectID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Message: err.Error()})
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		status, msg := readError(resp)
		return nil, fmt.Errorf("%s: %w", op, &LoadError{Status: status, Message: msg})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", op, err)
	}

	dtos, err := decodeList[api.AppointmentResponse](raw, "appointments", "data")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]models.Appointment, 0, len(dtos))
	for _, dto := range dtos {
		appt, err := api.AppointmentFromDTO(dto)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, appt)
	}

	return result, nil
}

// UpdateAppointment sends the working copy in one PUT on behalf of who. It
// never retries. Any failure is reported as *SubmissionError.
func (c *Client) UpdateAppointment(ctx context.Context, who models.Identity, appt models.Appointment) error {
	body, err := json.Marshal(api.AppointmentToUpdate(appt))
	if err != nil {
		return &SubmissionError{Message: err.Error()}
	}

	resp, err := c.do(ctx, who, http.MethodPut, "/appointments/"+url.PathEscape(appt.ID), body)
	if err != nil {
		return &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		status, msg := readError(resp)
		return &SubmissionError{Status: status, Message: msg}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func (c *Client) do(ctx context.Context, who models.Identity, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", c.requestID())
	if who.UserID != "" {
		req.Header.Set("X-User-Id", who.UserID)
	}
	if who.Role != "" {
		req.Header.Set("X-User-Role", who.Role)
	}

	return c.http.Do(req)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
