package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the single live refresh record per user.
// Token always holds the most recently issued refresh token value.
type RefreshToken struct {
	UserID    uuid.UUID
	Token     string
	RotatedAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
