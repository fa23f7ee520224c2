package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/auth"
	"github.com/yourname/fixyoursleep/internal/response"
	"github.com/yourname/fixyoursleep/internal/service"
	"github.com/yourname/fixyoursleep/internal/tracker"
	"github.com/yourname/fixyoursleep/internal/vision"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, internal.ErrInvalidGoal),
		errors.Is(err, internal.ErrInvalidDocument),
		errors.Is(err, tracker.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, internal.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, internal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrDuplicateEntry),
		errors.Is(err, internal.ErrStepOutOfOrder),
		errors.Is(err, internal.ErrAttemptResolved),
		errors.Is(err, tracker.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, internal.ErrSensorUnavailable),
		errors.Is(err, service.ErrNoBookDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vision.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	if status >= http.StatusInternalServerError {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	} else {
		logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
	}
	var resp response.APIResponse
	switch status {
	case http.StatusBadRequest:
		resp = response.BadRequest(msg + ": " + err.Error())
	case http.StatusNotFound:
		resp = response.NotFound(msg + ": " + err.Error())
	case http.StatusConflict:
		resp = response.Conflict(msg + ": " + err.Error())
	case http.StatusInternalServerError:
		resp = response.InternalError(msg)
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

// HandleServiceError picks the status from the error itself.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, StatusFor(err), msg)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Success", requestID)
	c.JSON(http.StatusOK, response.Success(data, meta))
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Created", requestID)
	c.JSON(http.StatusCreated, response.Success(data, meta))
}

func currentUser(c *gin.Context) *internal.User {
	user, ok := auth.CurrentUser(c)
	if !ok {
		panic("api: handler mounted without auth middleware")
	}
	return user
}
