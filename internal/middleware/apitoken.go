package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/models"
	"github.com/alx-report/report-api/internal/service"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the read-API principal.
const ContextPrincipalKey = "apiPrincipal"

// APIToken authenticates read-API requests with an opaque bearer token,
// enforces the daily quota and appends the request to the durable log. The
// log write happens before the request is served so the quota cannot be
// dodged by erroring out downstream.
func APIToken(auth *service.AuthService, limiter *service.RateLimitService, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}

		now := time.Now()
		principal, err := auth.AuthenticateToken(c.Request.Context(), token, now)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if err := limiter.Check(c.Request.Context(), principal.UserID, now); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrRateLimited.Code {
				metrics.RecordRateLimited()
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		if err := limiter.Record(c.Request.Context(), &models.RequestLog{
			UserID:      principal.UserID,
			CompanyID:   principal.CompanyID,
			Endpoint:    c.FullPath(),
			IPAddress:   c.ClientIP(),
			UserAgent:   c.GetHeader("User-Agent"),
			TimeCreated: now.Unix(),
		}); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
