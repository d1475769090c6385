package models

import (
	"time"

	"github.com/google/uuid"
)

// Social login provider that issued the user identity
type Provider string

const (
	ProviderKakao Provider = "kakao"
)

type User struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Provider   Provider
	ProviderID string
	Email      string
	Picture    string
}
