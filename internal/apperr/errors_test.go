package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NotFound("message not found"), http.StatusNotFound},
		{Forbidden("only the sender may delete"), http.StatusForbidden},
		{AlreadyProcessed("request already processed"), http.StatusConflict},
		{InvalidState("cannot forward"), http.StatusConflict},
		{RecallWindowExpired("too late"), http.StatusUnprocessableEntity},
		{Validation("content is required"), http.StatusBadRequest},
		{TokenExpired("token expired"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestSentinelMatchingByCode(t *testing.T) {
	err := fmt.Errorf("respond: %w", AlreadyProcessed("friend request already processed"))

	assert.True(t, errors.Is(err, ErrAlreadyProcessed))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, CodeAlreadyProcessed, CodeOf(err))
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal("load messages", errors.New("pq: connection refused"))

	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "message not found", PublicMessage(NotFound("message not found")))
}
