package internal

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("a sleep log already exists for this day")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrInvalidGoal       = errors.New("bed time and wake time are required")
	ErrSensorUnavailable = errors.New("motion sensor unavailable")
	ErrPermissionDenied  = errors.New("notifications are disabled")
	ErrStepOutOfOrder    = errors.New("routine step cannot be completed out of order")
	ErrAttemptResolved   = errors.New("sleep attempt already resolved")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// AppError is the error body carried inside an API response.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
