package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperr"
	"messenger-service/internal/auth"
)

func setupRouter(a *auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(a), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func call(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	a := auth.NewAuthenticator("secret")
	token, err := a.Sign("u-7", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	rec := call(setupRouter(a), "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u-7"}`, rec.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	a := auth.NewAuthenticator("secret")
	expired, err := a.Sign("u-7", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   apperr.Code
	}{
		{"missing", "", apperr.CodeUnauthorized},
		{"wrong scheme", "Basic abc", apperr.CodeUnauthorized},
		{"garbage", "Bearer nope", apperr.CodeUnauthorized},
		{"expired", "Bearer " + expired, apperr.CodeTokenExpired},
	}
	r := setupRouter(a)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(r, tc.header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tc.code), body["code"])
		})
	}
}
