package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/middleware"
	"github.com/alx-report/report-api/internal/models"
)

// timeNow is a seam for handler tests.
var timeNow = time.Now

func principalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
