// Package auth verifies bearer tokens issued by the authentication service.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"messenger-service/internal/apperr"
)

// Claims carries the user id. Tokens may put it in user_id or in the standard subject.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HMAC-signed tokens.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

// Authenticate returns the user id carried by token. Expired tokens yield TokenExpired, every
// other failure Unauthorized.
func (a *Authenticator) Authenticate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.Unauthorized("missing token")
	}

	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Wrap(apperr.CodeTokenExpired, "token expired", err)
		}
		return "", apperr.Wrap(apperr.CodeUnauthorized, "invalid token", err)
	}
	if !parsed.Valid {
		return "", apperr.Unauthorized("invalid token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", apperr.Unauthorized("token carries no user")
	}
	return userID, nil
}

// Sign issues a token for userID. Used by tests and local tooling.
func (a *Authenticator) Sign(userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: userID, RegisteredClaims: claims})
	return token.SignedString(a.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
