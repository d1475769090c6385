package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/moneybookapp/moneybook/internal/handlers/render"
	"github.com/moneybookapp/moneybook/internal/handlers/userctx"
)

type UserHandler struct{}

func NewUser() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	type MeResponse struct {
		ID        uuid.UUID `json:"id"`
		Provider  string    `json:"provider"`
		Email     string    `json:"email,omitempty"`
		Picture   string    `json:"picture,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, MeResponse{
		ID:        user.ID,
		Provider:  string(user.Provider),
		Email:     user.Email,
		Picture:   user.Picture,
		CreatedAt: user.CreatedAt,
	})
}
