package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"venture-backend/internal/shared/server/middleware"
	"venture-backend/internal/shared/server/respond"
)

type meResponse struct {
	UserID  string `json:"userId"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	respond.JSON(c, http.StatusOK, meResponse{
		UserID:  userID,
		Email:   middleware.UserEmailFromContext(c),
		Name:    middleware.UserNameFromContext(c),
		Picture: middleware.UserPictureFromContext(c),
	})
}
