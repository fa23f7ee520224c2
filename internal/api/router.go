package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yourname/fixyoursleep/internal/auth"
)

var validate = validator.New()

func NewRouter(app App, provider auth.Provider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogMiddleware(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/", auth.AuthMiddleware(provider))
	authed.GET("/ws", GetDeviceSocket(app))

	a := authed.Group("/api")
	a.POST("/profile", PostProfile(app))
	a.GET("/profile", GetProfile(app))
	a.PUT("/goals", PutGoal(app))

	a.GET("/sleep", GetSleep(app))
	a.GET("/sleep/status", GetSleepStatus(app))
	a.GET("/sleep/calendar", GetSleepCalendar(app))
	a.GET("/sleep/stats", GetSleepStats(app))
	a.DELETE("/sleep/:id", DeleteSleep(app))

	a.POST("/routine", PostRoutine(app))
	a.GET("/routine", GetRoutine(app))
	a.DELETE("/routine", DeleteRoutine(app))
	a.POST("/routine/steps/:index/complete", PostRoutineStep(app))
	a.POST("/routine/relax/photo", PostRelaxPhoto(app))
	a.POST("/routine/countdown", PostCountdown(app))
	a.DELETE("/routine/countdown", DeleteCountdown(app))
	a.POST("/routine/monitoring", PostMonitoring(app))
	a.DELETE("/routine/monitoring", DeleteMonitoring(app))

	a.POST("/notifications/permission", PostPermission(app))
	a.GET("/notifications/permission", GetPermission(app))

	return r
}
