package response

import "errors"

// Response is the error body of every non-2xx reply. Clients read Message.
type Response struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	INVALID_ID         ErrCode = "INVALID_ID"
	INVALID_SCHEDULE   ErrCode = "INVALID_SCHEDULE"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	LOCKED             ErrCode = "LOCKED"
	CONFLICT           ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE ErrCode = "SLOT_NOT_AVAILABLE"
	RATE_LIMITED       ErrCode = "RATE_LIMITED"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrNotFound         = errors.New("resource not found")
	ErrLocked           = errors.New("resource is locked")
	ErrConflict         = errors.New("conflict")
	ErrSlotNotAvailable = errors.New("slot is not available")
)

func Error(code ErrCode, msg string) Response {
	return Response{
		Code:    string(code),
		Message: msg,
	}
}

// InvalidError is a rejected input whose Message is safe to send to the
// client. It matches Kind and Cause under errors.Is.
type InvalidError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *InvalidError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *InvalidError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func Invalid(kind error, msg string, cause error) error {
	return &InvalidError{Kind: kind, Message: msg, Cause: cause}
}

// Message returns the client message carried by err, or fallback when err
// has none.
func Message(err error, fallback string) string {
	var ie *InvalidError
	if errors.As(err, &ie) {
		return ie.Message
	}
	return fallback
}
