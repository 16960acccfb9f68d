package dto

import (
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// IssueTokenRequest describes the holder of a new access token.
type IssueTokenRequest struct {
	Subject string        `json:"subject" validate:"required,max=120"`
	Role    string        `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER"`
	Name    string        `json:"name" validate:"omitempty,max=120"`
	TTL     time.Duration `json:"ttl"`
}

// TokenResponse returns a signed access token.
type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	Role        models.UserRole `json:"role"`
	ExpiresAt   time.Time       `json:"expires_at"`
}
