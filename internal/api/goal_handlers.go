package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourname/fixyoursleep/internal/service"
)

func PutGoal(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.GoalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: bed_time and wake_time required")
			return
		}
		if err := service.ValidateGoalRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Goal validation failed")
			return
		}

		if err := service.UpdateGoal(c.Request.Context(), app.Goals(), app.KV(), user, &req); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save goal")
			return
		}
		profile, err := app.Profiles().GetProfile(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load profile")
			return
		}
		HandleSuccess(c, app.Logger(), profile, nil)
	}
}
