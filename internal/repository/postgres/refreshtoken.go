package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const getToken = `-- name: Get refresh record for user
SELECT user_id, token, rotated_at
FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) Get(ctx context.Context, userID uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, userID)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const upsertToken = `-- name: Create or rotate refresh record
INSERT INTO refresh_tokens (user_id, token, rotated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET token = EXCLUDED.token, rotated_at = EXCLUDED.rotated_at
RETURNING user_id, token, rotated_at
`

func (r *RefreshTokenRepo) Upsert(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, upsertToken, token.UserID, token.Token, token.RotatedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const rotateToken = `-- name: Rotate refresh record if current value still matches
UPDATE refresh_tokens
SET token = $3, rotated_at = $4
WHERE user_id = $1 AND token = $2
RETURNING user_id, token, rotated_at
`

// Rotate compares and overwrites in a single statement. The row lock
// serializes concurrent rotations per user: exactly one caller sees its
// currentToken match, the rest get apperrors.ErrRefreshTokenNotFound.
func (r *RefreshTokenRepo) Rotate(ctx context.Context, userID uuid.UUID, currentToken string, newToken string, rotatedAt time.Time) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, rotateToken, userID, currentToken, newToken, rotatedAt)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteTokens = `-- name: Delete refresh record for user
DELETE FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteTokens, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.UserID, &t.Token, &t.RotatedAt)
	return t, err
}
