package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourname/fixyoursleep/internal/response"
	"github.com/yourname/fixyoursleep/internal/service"
)

const maxPhotoBytes = 10 << 20

type countdownRequest struct {
	Seconds int `json:"seconds" validate:"gte=0,lte=86400"`
}

func PostRoutine(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		tr := app.Sessions().Start(c.Request.Context(), user.ID)
		HandleCreated(c, app.Logger(), tr.Snapshot(), nil)
	}
}

func GetRoutine(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		tr, err := app.Sessions().Get(user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "No routine")
			return
		}
		HandleSuccess(c, app.Logger(), tr.Snapshot(), nil)
	}
}

func PostRoutineStep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid step index")
			return
		}
		steps, err := app.Sessions().CompleteStep(c.Request.Context(), user.ID, index)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to complete step")
			return
		}
		HandleSuccess(c, app.Logger(), steps, nil)
	}
}

// PostRelaxPhoto takes a multipart "image" and completes the relax step when
// a book is detected.
func PostRelaxPhoto(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		fh, err := c.FormFile("image")
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: image required")
			return
		}
		if fh.Size > maxPhotoBytes {
			HandleError(c, app.Logger(), errors.New("image too large"), http.StatusRequestEntityTooLarge, "Invalid request")
			return
		}
		f, err := fh.Open()
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Unreadable image")
			return
		}
		defer f.Close()
		image, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes))
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Unreadable image")
			return
		}

		labels, err := app.Sessions().VerifyRelaxPhoto(c.Request.Context(), user.ID, image)
		if errors.Is(err, service.ErrNoBookDetected) {
			app.Logger().Infof("[request_id=%s] relax photo rejected for %s", c.GetString("request_id"), user.ID)
			c.JSON(http.StatusUnprocessableEntity, response.NewAppError(http.StatusUnprocessableEntity, err.Error()).
				WithMeta(map[string]any{"labels": labels}))
			return
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to verify photo")
			return
		}
		tr, err := app.Sessions().Get(user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "No routine")
			return
		}
		HandleSuccess(c, app.Logger(), tr.Snapshot(), map[string]any{"labels": labels})
	}
}

func PostCountdown(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		var req countdownRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
				return
			}
		}
		if err := validate.Struct(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Countdown validation failed")
			return
		}
		cd, err := app.Sessions().StartCountdown(user.ID, req.Seconds)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to start countdown")
			return
		}
		HandleCreated(c, app.Logger(), gin.H{
			"seconds":   cd.Total(),
			"remaining": cd.Remaining(),
			"display":   cd.Format(),
		}, nil)
	}
}

func DeleteCountdown(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.Sessions().CancelCountdown(user.ID); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to cancel countdown")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func PostMonitoring(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.Sessions().StartMonitoring(user.ID); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to start monitoring")
			return
		}
		tr, err := app.Sessions().Get(user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "No routine")
			return
		}
		HandleSuccess(c, app.Logger(), tr.Snapshot(), nil)
	}
}

func DeleteMonitoring(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.Sessions().StopMonitoring(user.ID); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to stop monitoring")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func DeleteRoutine(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.Sessions().End(c.Request.Context(), user.ID); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to cancel the sleep")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
