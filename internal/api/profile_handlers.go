package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/response"
	"github.com/yourname/fixyoursleep/internal/service"
)

func PostProfile(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.ProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid request: user_name required")
			return
		}
		if err := service.ValidateProfileRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Profile validation failed")
			return
		}

		profile, created, err := service.CreateProfile(c.Request.Context(), app.Profiles(), app.KV(), user, &req)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to create profile")
			return
		}
		if created {
			HandleCreated(c, app.Logger(), profile, nil)
			return
		}
		HandleSuccess(c, app.Logger(), profile, nil)
	}
}

func GetProfile(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		profile, err := app.Profiles().GetProfile(c.Request.Context(), user.ID)
		if errors.Is(err, internal.ErrNotFound) {
			c.JSON(http.StatusNotFound, response.NotFound("No profile yet").WithMeta(map[string]any{"onboarding_required": true}))
			return
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load profile")
			return
		}
		HandleSuccess(c, app.Logger(), profile, map[string]any{"onboarding_required": !profile.HasGoal()})
	}
}
