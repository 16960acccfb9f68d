package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "eduschedule"})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newTestAuthService()

	resp, err := svc.IssueToken(dto.IssueTokenRequest{Subject: "ops", Role: "admin", Name: "Operations"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "Operations", claims.Name)
	assert.Equal(t, "eduschedule", claims.Issuer)
}

func TestAuthServiceIssueRejectsUnknownRole(t *testing.T) {
	_, err := newTestAuthService().IssueToken(dto.IssueTokenRequest{Subject: "ops", Role: "STUDENT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateRejectsForeignSignature(t *testing.T) {
	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other"})
	resp, err := other.IssueToken(dto.IssueTokenRequest{Subject: "ops", Role: "TEACHER"})
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateRejectsExpired(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{
		UserID: "ops",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestAuthServiceValidateRejectsUnknownRoleClaim(t *testing.T) {
	claims := &models.JWTClaims{UserID: "ops", Role: "STUDENT"}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestAuthService().ValidateToken(signed)
	require.Error(t, err)
}
