package services

import (
	"context"
	"strings"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const maxSearchResults = 20

// UserService reads the user directory.
type UserService struct {
	users repositories.UserRepository
}

func NewUserService(users repositories.UserRepository) *UserService {
	return &UserService{users: users}
}

// Search finds users whose email contains pattern, excluding the caller.
func (s *UserService) Search(ctx context.Context, callerID, pattern string) ([]models.User, error) {
	pattern = strings.TrimSpace(pattern)
	if len(pattern) < 2 {
		return nil, apperr.Validation("email must be at least 2 characters")
	}
	found, err := s.users.SearchByEmail(ctx, pattern, maxSearchResults+1)
	if err != nil {
		return nil, apperr.Internal("failed to search users", err)
	}
	out := make([]models.User, 0, len(found))
	for _, u := range found {
		if u.ID != callerID && len(out) < maxSearchResults {
			out = append(out, u)
		}
	}
	return out, nil
}

// Get returns one profile.
func (s *UserService) Get(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, translate(err, "user")
	}
	return user, nil
}
