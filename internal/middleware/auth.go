package middleware

import (
	"github.com/gin-gonic/gin"

	"messenger-service/internal/apperr"
	"messenger-service/internal/auth"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Authenticate(token string) (string, error)
}

// AuthMiddleware validates the Authorization header and stores the user id on the context.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Unauthorized("missing authorization"))
			return
		}

		token, ok := auth.BearerToken(header)
		if !ok {
			abort(c, apperr.Unauthorized("invalid authorization header"))
			return
		}

		userID, err := verifier.Authenticate(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{
		"error": apperr.PublicMessage(err),
		"code":  apperr.CodeOf(err),
	})
}
