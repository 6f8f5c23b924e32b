package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := observability.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	if id := c.GetString("requestID"); id != "" {
		return id
	}

	requestID := c.GetHeader("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("requestID", requestID)
	return requestID
}

func currentUser(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func userIDFromContext(c *gin.Context) *string {
	if id := currentUser(c); id != "" {
		return &id
	}
	return nil
}

func emitAudit(c *gin.Context, auditor Auditor, level, text string) {
	if auditor == nil {
		return
	}
	auditor.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

// respondError writes err using the error taxonomy. Internal causes are logged, never returned.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", requestIDFromContext(c)).Str("route", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err), "code": apperr.CodeOf(err)})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperr.Validation(err.Error()))
}

// pageParams reads ?before=<RFC3339>&limit=<n>.
func pageParams(c *gin.Context) (*time.Time, int, error) {
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, 0, apperr.Validation("before must be an RFC3339 timestamp")
		}
		before = &t
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, 0, apperr.Validation("limit must be a number")
		}
		limit = n
	}
	return before, limit, nil
}
