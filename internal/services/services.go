// Package services holds the messaging workflows: durable writes first, then a best-effort
// notification tail through a Notifier.
package services

import (
	"context"
	"errors"
	"time"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// Notifier pushes events to live connections. Implementations never fail the caller.
type Notifier interface {
	NotifyUsers(ctx context.Context, userIDs []string, event models.Event)
	Broadcast(ctx context.Context, channel string, event models.Event, exceptConnID string)
	CloseChannel(channel string)
}

// Clock returns the current time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

var notFoundErrors = []error{
	repositories.ErrUserNotFound,
	repositories.ErrFriendRequestNotFound,
	repositories.ErrFriendshipNotFound,
	repositories.ErrConversationNotFound,
	repositories.ErrMessageNotFound,
	repositories.ErrGroupNotFound,
	repositories.ErrMemberNotFound,
}

// translate maps repository errors onto the public taxonomy. Anything unrecognised is a
// storage failure.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return apperr.Wrap(apperr.CodeNotFound, what+" not found", err)
		}
	}
	switch {
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, what+" already exists", err)
	case errors.Is(err, repositories.ErrAlreadyProcessed):
		return apperr.Wrap(apperr.CodeAlreadyProcessed, what+" already processed", err)
	}
	return apperr.Internal("failed to load "+what, err)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
