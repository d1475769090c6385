package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/models"
	"github.com/moneybookapp/moneybook/internal/repository/postgres"
	"github.com/moneybookapp/moneybook/internal/service/auth/tokenmanager"
	"github.com/moneybookapp/moneybook/internal/service/user"
	"github.com/moneybookapp/moneybook/internal/testutil"
)

// fakeVerifier resolves known raw tokens to identities, anything else fails
// the way the real verifier does
type fakeVerifier struct {
	identities map[string]models.ProviderIdentity
}

func (f fakeVerifier) Verify(_ context.Context, rawToken string) (models.ProviderIdentity, error) {
	identity, ok := f.identities[rawToken]
	if !ok {
		return identity, apperrors.ErrIDTokenInvalid
	}
	return identity, nil
}

var testIdentity = models.ProviderIdentity{
	Provider: models.ProviderKakao,
	Subject:  "kakao-user-42",
	Email:    "user@example.com",
}

func newAuthService(t *testing.T, db postgres.DBTX, refreshTTL time.Duration) *AuthService {
	t.Helper()

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  "test-secret-key",
		RefreshTTL: refreshTTL,
	})
	require.NoError(t, err, "token manager should be created without errors")

	userService := user.NewService(&postgres.UserRepo{DB: db})
	verifier := fakeVerifier{identities: map[string]models.ProviderIdentity{"good-id-token": testIdentity}}

	s, err := NewService(tokenManager, verifier, userService, &postgres.RefreshTokenRepo{DB: db})
	require.NoError(t, err, "auth service could't be started")

	return s
}

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, refreshTTL time.Duration, fn func(s *AuthService)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(newAuthService(t, tx, refreshTTL))
		})
	}

	t.Run("Login", func(t *testing.T) {
		t.Run("verified token ok", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			})
		})

		t.Run("second login rotates refresh", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				first, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				second, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)
				require.NotEqual(t, first.Refresh.Value, second.Refresh.Value)

				// the first pair's refresh token is rotated out
				_, err = s.Refresh(t.Context(), first.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)

				_, err = s.Refresh(t.Context(), second.Refresh.Value)
				require.NoError(t, err)
			})
		})

		t.Run("unverified token rejected", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				_, err := s.Login(t.Context(), "forged-id-token")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrIDTokenInvalid)
			})
		})
	})

	t.Run("IssueTokens", func(t *testing.T) {
		t.Run("repeated issue invalidates previous refresh", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				first, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				u, err := s.tokens.ParseRefresh(first.Refresh.Value)
				require.NoError(t, err)

				second, err := s.IssueTokens(t.Context(), u)
				require.NoError(t, err)
				require.NotEqual(t, first.Refresh.Value, second.Refresh.Value)

				_, err = s.Refresh(t.Context(), first.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized, "rotated-out token must be rejected")

				third, err := s.Refresh(t.Context(), second.Refresh.Value)
				require.NoError(t, err)
				require.NotEqual(t, second.Refresh.Value, third.Refresh.Value)
			})
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("reissue chain", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				next, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.NotEqual(t, pair.Refresh.Value, next.Refresh.Value)

				// a used token does not work twice
				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("authentic token without session", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				// signed by our own manager but no record for the user exists
				pair, err := s.tokens.GeneratePair(uuid.New())
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("expired token", func(t *testing.T) {
			withTx(t, -time.Minute, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("garbage token", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				_, err := s.Refresh(t.Context(), "not-even-a-jwt")

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("drops the session", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				userID, err := s.tokens.ParseRefresh(pair.Refresh.Value)
				require.NoError(t, err)

				require.NoError(t, s.Logout(t.Context(), userID))

				_, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrUnauthorized, "no prior token survives logout")
			})
		})

		t.Run("idempotent", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				userID := uuid.New()

				require.NoError(t, s.Logout(t.Context(), userID))
				require.NoError(t, s.Logout(t.Context(), userID), "logout without session is not an error")
			})
		})
	})

	t.Run("Auth", func(t *testing.T) {
		newRequest := func(header string) *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			return r
		}

		t.Run("bearer access token ok", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				u, err := s.Auth(t.Context(), newRequest("Bearer "+pair.Access.Value))

				require.NoError(t, err)
				require.Equal(t, testIdentity.Subject, u.ProviderID)
			})
		})

		tests := []struct {
			name   string
			header string
		}{
			{name: "no header", header: ""},
			{name: "wrong scheme", header: "Basic dXNlcjpwd2Q="},
			{name: "garbage token", header: "Bearer garbage"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, 24*time.Hour, func(s *AuthService) {
					_, err := s.Auth(t.Context(), newRequest(tt.header))

					require.ErrorIs(t, err, apperrors.ErrUnauthorized)
				})
			})
		}

		t.Run("refresh token is not an access token", func(t *testing.T) {
			withTx(t, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Login(t.Context(), "good-id-token")
				require.NoError(t, err)

				_, err = s.Auth(t.Context(), newRequest("Bearer "+pair.Refresh.Value))

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})
	})

	// Run against the pool, not a test transaction: the point is that
	// concurrent rotations race on the real row lock
	t.Run("concurrent refresh has a single winner", func(t *testing.T) {
		s := newAuthService(t, pg.Pool, 24*time.Hour)

		pair, err := s.Login(t.Context(), "good-id-token")
		require.NoError(t, err)

		const n = 10
		errs := make([]error, n)

		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.Refresh(context.Background(), pair.Refresh.Value)
			}()
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "losers must fail like any other unauthorized request")
		}

		require.Equal(t, 1, won, "exactly one concurrent refresh may win")
	})
}
