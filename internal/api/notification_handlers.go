package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type permissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

func PostPermission(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		var req permissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := validate.Struct(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: granted required")
			return
		}
		p := app.Permissions().SetPermission(user.ID, *req.Granted)
		HandleSuccess(c, app.Logger(), gin.H{"permission": p}, nil)
	}
}

func GetPermission(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		HandleSuccess(c, app.Logger(), gin.H{"permission": app.Permissions().Permission(user.ID)}, nil)
	}
}

// GetDeviceSocket hands the connection to the device channel.
func GetDeviceSocket(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		app.Devices().ServeUser(c.Writer, c.Request, user.ID)
	}
}
