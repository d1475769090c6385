package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
	"github.com/moneybookapp/moneybook/internal/repository"
	"github.com/moneybookapp/moneybook/internal/service/auth/tokenmanager"
)

const authScheme = "Bearer"

// Interface to verify a provider issued ID token
type IDTokenVerifier interface {
	// Verify returns the identity claims only if every check passed
	Verify(ctx context.Context, rawToken string) (models.ProviderIdentity, error)
}

// Interface to resolve verified identities to internal users
type UserResolver interface {
	GetOrCreateByProvider(ctx context.Context, identity models.ProviderIdentity) (models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// AuthService owns the session lifecycle: it turns a verified social login
// into a local token pair and rotates the stored refresh token on every
// issue or reissue, so at most one refresh token per user is ever valid.
type AuthService struct {
	tokens      *tokenmanager.TokenManager
	verifier    IDTokenVerifier
	users       UserResolver
	refreshRepo repository.RefreshTokenRepo
}

func NewService(tokens *tokenmanager.TokenManager, verifier IDTokenVerifier, users UserResolver, refreshRepo repository.RefreshTokenRepo) (*AuthService, error) {
	if tokens == nil || verifier == nil || users == nil || refreshRepo == nil {
		return nil, errors.New("tokens, verifier, users and refreshRepo must not be nil")
	}

	return &AuthService{
		tokens:      tokens,
		verifier:    verifier,
		users:       users,
		refreshRepo: refreshRepo,
	}, nil
}

// Login verifies the provider ID token, resolves the user and issues tokens.
// Verification failures keep their specific kind in the error chain for logs
func (s *AuthService) Login(ctx context.Context, rawIDToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return pair, err
	}

	user, err := s.users.GetOrCreateByProvider(ctx, identity)
	if err != nil {
		return pair, fmt.Errorf("error while resolving user. Err: %w", err)
	}

	return s.IssueTokens(ctx, user.ID)
}

// IssueTokens mints a fresh pair and rotates the stored refresh record.
// Always succeeds for a known user and always invalidates the previously
// issued refresh token
func (s *AuthService) IssueTokens(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	pair, err := s.tokens.GeneratePair(userID)
	if err != nil {
		return pair, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	_, err = s.refreshRepo.Upsert(ctx, models.RefreshToken{
		UserID:    userID,
		Token:     pair.Refresh.Value,
		RotatedAt: time.Now(),
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return pair, nil
}

// Refresh reissues the pair for a presented refresh token. The token must be
// authentic, unexpired and byte-for-byte equal to the stored record: a token
// rotated out earlier is rejected even though its own signature is fine.
// All rejection reasons collapse into apperrors.ErrUnauthorized
func (s *AuthService) Refresh(ctx context.Context, presentedRefresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	userID, err := s.tokens.ParseRefresh(presentedRefresh)
	if err != nil {
		return pair, unauthorized(err)
	}

	pair, err = s.tokens.GeneratePair(userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	_, err = s.refreshRepo.Rotate(ctx, userID, presentedRefresh, pair.Refresh.Value, time.Now())
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		// no session or a replayed token, indistinguishable on purpose
		return models.TokenPair{}, unauthorized(err)
	default:
		return models.TokenPair{}, fmt.Errorf("error while rotating refresh token. Err: %w", err)
	}
}

// Logout drops the refresh record. Idempotent
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.refreshRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("error while deleting refresh token. Err: %w", err)
	}

	return nil
}

// Auth authenticates a request by its Bearer access token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	var user models.User

	header := r.Header.Get("Authorization")
	value, found := strings.CutPrefix(header, authScheme+" ")
	if !found || value == "" {
		return user, unauthorized(errors.New("no bearer token in request"))
	}

	userID, err := s.tokens.ParseAccess(value)
	if err != nil {
		return user, unauthorized(err)
	}

	user, err = s.users.GetByID(ctx, userID)
	if err != nil {
		return user, unauthorized(err)
	}

	return user, nil
}

// unauthorized hides the reason from callers but keeps it wrapped for logs
func unauthorized(reason error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, reason)
}
