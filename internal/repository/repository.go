package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user for a verified provider identity
	// If a user with the same (provider, provider id) exists already
	// has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, identity models.ProviderIdentity) (models.User, error)

	// Get user by internal id or by the provider identity it was created from
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByProvider(ctx context.Context, provider models.Provider, providerID string) (models.User, error)
}

// RefreshToken repository interface
// There is at most one refresh record per user and it always holds the most
// recently issued token value
type RefreshTokenRepo interface {
	// Get the current record for user
	// If there is none must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, userID uuid.UUID) (models.RefreshToken, error)

	// Create the record or overwrite the existing one (rotation on login)
	Upsert(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Replace currentToken with newToken only if currentToken is still the
	// stored value. The compare and the overwrite are one atomic statement:
	// of N concurrent rotations with the same currentToken exactly one wins.
	// If nothing matched (no record, or the token was already rotated out)
	// must return apperrors.ErrRefreshTokenNotFound
	Rotate(ctx context.Context, userID uuid.UUID, currentToken string, newToken string, rotatedAt time.Time) (models.RefreshToken, error)

	// Delete the record for user
	// Deleting a non-existent record is not an error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
