package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/middleware"
)

// actorID names the caller for job ownership; empty for anonymous requests.
func actorID(c *gin.Context) string {
	if claims := middleware.CurrentClaims(c); claims != nil {
		return claims.UserID
	}
	return ""
}
