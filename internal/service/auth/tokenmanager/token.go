package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 14 * 24 * time.Hour
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	TokenType string    `json:"typ"`
}

// Token manager with sensible defaults
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set then default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager mints and validates local access and refresh tokens.
// Both are signed JWTs carrying the user id, so each can be validated on its
// own. Minting has no side effects: persisting the refresh token is the
// session layer's job.
type TokenManager struct {
	key string
	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *TokenManager) GeneratePair(userID uuid.UUID) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, accessExpiresAt, err := m.sign(userID, typeAccess, now, m.accessTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, refreshExpiresAt, err := m.sign(userID, typeRefresh, now, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

func (m *TokenManager) sign(userID uuid.UUID, tokenType string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    userID,
			TokenType: tokenType,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	return signed, expiresAt, err
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(access string) (userID uuid.UUID, err error) {
	claims, err := m.parse(access, typeAccess)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while parsing access token. Err: %w", err)
	}

	return claims.UserID, nil
}

// Parse and validate refresh token
// Note that it only proves the token was issued here and is not expired,
// the session layer still has to match it against the stored record
func (m *TokenManager) ParseRefresh(refresh string) (userID uuid.UUID, err error) {
	claims, err := m.parse(refresh, typeRefresh)
	switch {
	case err == nil:
		return claims.UserID, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, fmt.Errorf("error while parsing refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	default:
		return uuid.Nil, fmt.Errorf("error while parsing refresh token. Err: %w", err)
	}
}

func (m *TokenManager) parse(value string, tokenType string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	// An access token must not pass as refresh and vice versa
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}

	return claims, nil
}
