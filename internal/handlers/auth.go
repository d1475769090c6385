package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/apperrors"
	"github.com/moneybookapp/moneybook/internal/handlers/render"
	"github.com/moneybookapp/moneybook/internal/handlers/userctx"
	"github.com/moneybookapp/moneybook/internal/logger"
	"github.com/moneybookapp/moneybook/internal/models"
)

// Auth service
type AuthService interface {
	// Login with a provider issued ID token
	// Verification failures wrap apperrors.ErrIDTokenInvalid,
	// a key set outage wraps apperrors.ErrKeySourceUnavailable
	Login(ctx context.Context, rawIDToken string) (models.TokenPair, error)

	// Reissue the pair for a presented refresh token
	// Any rejection wraps apperrors.ErrUnauthorized
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Drop the user session, idempotent
	Logout(ctx context.Context, userID uuid.UUID) error
}

type TokenWebResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthHandler struct {
	authService AuthService
	logger      logger.Logger
}

func NewAuth(auth AuthService, logger logger.Logger) *AuthHandler {
	return &AuthHandler{authService: auth, logger: logger}
}

func (h *AuthHandler) loginKakao(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		IDToken string `json:"idToken" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.IDToken)
	if err != nil {
		// The response never says which check failed, the log does
		h.logger.Warn("login rejected", "error", err.Error())

		switch {
		case errors.Is(err, apperrors.ErrKeySourceUnavailable):
			render.ServiceError(w, "Authentication temporarily unavailable", http.StatusServiceUnavailable)
		case errors.Is(err, apperrors.ErrIDTokenInvalid):
			render.ServiceError(w, "Authentication failed", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, TokenWebResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		h.logger.Warn("token refresh rejected", "error", err.Error())

		switch {
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Authentication failed", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, TokenWebResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		h.logger.Error("logout failed", "error", err.Error(), "user_id", user.ID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
