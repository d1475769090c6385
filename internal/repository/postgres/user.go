package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, provider, provider_id, email, picture)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, provider, provider_id, email, picture
`

func (r *UserRepo) CreateUser(ctx context.Context, identity models.ProviderIdentity) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), identity.Provider, identity.Subject, identity.Email, identity.Picture)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: getUserByID
SELECT id, created_at, provider, provider_id, email, picture
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByProvider = `-- name: getUserByProvider
SELECT id, created_at, provider, provider_id, email, picture
FROM users
WHERE provider = $1 AND provider_id = $2
`

func (r *UserRepo) GetUserByProvider(ctx context.Context, provider models.Provider, providerID string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByProvider, provider, providerID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Provider, &u.ProviderID, &u.Email, &u.Picture)
	return u, err
}
