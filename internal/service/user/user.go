package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
	"github.com/moneybookapp/moneybook/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepo
}

func NewService(userRepo repository.UserRepo) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetOrCreateByProvider resolves a verified provider identity to the internal
// user, creating it on first login. Losing the insert race to a concurrent
// first login is fine: the winner's row is re-read.
func (s *UserService) GetOrCreateByProvider(ctx context.Context, identity models.ProviderIdentity) (models.User, error) {
	user, err := s.userRepo.GetUserByProvider(ctx, identity.Provider, identity.Subject)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		// first login, fall through to create
	default:
		return user, fmt.Errorf("can't resolve user. Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, identity)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return s.userRepo.GetUserByProvider(ctx, identity.Provider, identity.Subject)
	}
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}
