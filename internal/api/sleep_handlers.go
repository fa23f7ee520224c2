package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourname/fixyoursleep/internal/calendar"
	"github.com/yourname/fixyoursleep/internal/service"
)

func GetSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		logs, err := app.SleepLogs().ListSleepLogs(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch logs")
			return
		}

		sort.Slice(logs, func(i, j int) bool {
			return logs[i].Date.After(logs[j].Date)
		})

		HandleSuccess(c, app.Logger(), logs, map[string]any{"count": len(logs)})
	}
}

// GetSleepStatus answers fetchLogStatus for ?dates=YYYY-MM-DD,...
func GetSleepStatus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		days, err := service.ParseDays(c.Query("dates"))
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid dates")
			return
		}
		status, err := app.Logbook().FetchLogStatus(c.Request.Context(), user.ID, days)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch log status")
			return
		}
		HandleSuccess(c, app.Logger(), status, nil)
	}
}

func GetSleepCalendar(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		month := c.Query("month")
		if month == "" {
			month = time.Now().Format("2006-01")
		}
		days, err := calendar.MonthDays(month)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid month")
			return
		}
		status, err := app.Logbook().FetchLogStatus(c.Request.Context(), user.ID, days)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch calendar")
			return
		}
		HandleSuccess(c, app.Logger(), status, map[string]any{"month": month})
	}
}

func GetSleepStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		byDay, err := app.Logbook().ByDay(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch logs for stats")
			return
		}
		stats := service.CalculateSleepStats(byDay, app.Logbook().DayOf(time.Now()))
		HandleSuccess(c, app.Logger(), stats, nil)
	}
}

func DeleteSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if err := app.SleepLogs().DeleteSleepLog(c.Request.Context(), user.ID, c.Param("id")); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to delete log")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
