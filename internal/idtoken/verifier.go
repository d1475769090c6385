package idtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
)

// Grace window applied to exp and nbf checks to absorb clock drift
// between the provider and this service
const ClockSkew = 60 * time.Second

const expectedAlg = "RS256"

type Config struct {
	// Provider name recorded on the verified identity
	Provider models.Provider

	// Issuer the id token must be issued by, compared exactly
	Issuer string

	// OAuth client id of this application, must be in the token audience
	ClientID string
}

// Verifier checks a raw provider-issued ID token and extracts the identity
// claims. No claim is trusted before the token signature is verified against
// the key source.
type Verifier struct {
	provider models.Provider
	issuer   string
	clientID string
	keys     KeySource
}

func NewVerifier(cfg Config, keys KeySource) (*Verifier, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("issuer and client id must not be empty")
	}
	if keys == nil {
		return nil, errors.New("key source must not be nil")
	}

	return &Verifier{
		provider: cfg.Provider,
		issuer:   cfg.Issuer,
		clientID: cfg.ClientID,
		keys:     keys,
	}, nil
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Verify runs the full check chain on a raw ID token, cheapest first:
// structure, declared algorithm, key id, key resolution, signature, then
// issuer, audience and time validity of the now-trusted claims.
// Every failure wraps apperrors.ErrIDTokenInvalid plus the specific reason.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (models.ProviderIdentity, error) {
	var identity models.ProviderIdentity

	claims := &idTokenClaims{}

	// Claims are validated manually below: the library defaults don't apply
	// our skew and the failure reasons would be indistinguishable
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	_, err := parser.ParseWithClaims(rawToken, claims, v.keyFor(ctx))
	if err != nil {
		// Key set fetch failures are transient and retryable, so they are
		// surfaced as-is instead of the permanent verification category
		if errors.Is(err, apperrors.ErrKeySourceUnavailable) {
			return identity, fmt.Errorf("error while resolving signing key. Err: %w", err)
		}
		return identity, verificationError(mapParseError(err))
	}

	if claims.Issuer != v.issuer {
		return identity, verificationError(fmt.Errorf("%w: iss=%q", apperrors.ErrIDTokenIssuerMismatch, claims.Issuer))
	}

	if !audienceContains(claims.Audience, v.clientID) {
		return identity, verificationError(fmt.Errorf("%w: aud=%v", apperrors.ErrIDTokenAudienceMismatch, claims.Audience))
	}

	now := time.Now()
	if claims.ExpiresAt == nil || claims.ExpiresAt.Add(ClockSkew).Before(now) {
		return identity, verificationError(apperrors.ErrIDTokenExpired)
	}
	if claims.NotBefore != nil && claims.NotBefore.Add(-ClockSkew).After(now) {
		return identity, verificationError(apperrors.ErrIDTokenNotYetValid)
	}

	return models.ProviderIdentity{
		Provider: v.provider,
		Subject:  claims.Subject,
		Email:    claims.Email,
		Picture:  claims.Picture,
	}, nil
}

// keyFor builds the keyfunc the parser calls between decoding the token and
// verifying its signature. Rejecting foreign algorithms here closes the
// algorithm-confusion downgrade ("none", HS256 with the public key as secret).
func (v *Verifier) keyFor(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != expectedAlg {
			return nil, fmt.Errorf("%w: alg=%q", apperrors.ErrIDTokenAlgUnsupported, t.Method.Alg())
		}

		keyID, _ := t.Header["kid"].(string)
		if keyID == "" {
			return nil, apperrors.ErrIDTokenKeyIDMissing
		}

		return v.keys.Key(ctx, keyID)
	}
}

// mapParseError translates golang-jwt parse failures into the local taxonomy.
// Keyfunc errors come back wrapped and already carry the right sentinel.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrIDTokenAlgUnsupported),
		errors.Is(err, apperrors.ErrIDTokenKeyIDMissing),
		errors.Is(err, apperrors.ErrSigningKeyNotFound):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", apperrors.ErrIDTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrIDTokenMalformed, err)
	}
}

func verificationError(reason error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrIDTokenInvalid, reason)
}

func audienceContains(aud jwt.ClaimStrings, clientID string) bool {
	for _, a := range aud {
		if a == clientID {
			return true
		}
	}
	return false
}
