package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken_ValidCases(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker(secretKey, tokenTTL)

	tests := []struct {
		name   string
		userID string
		email  string
		role   string
	}{
		{
			name:   "admin",
			userID: "7d1c3a8e-0d7f-4b7e-9d55-4bcb1f0f2a11",
			email:  "admin@example.com",
			role:   "admin",
		},
		{
			name:   "regular user",
			userID: "2f0e9c1a-5c1b-4d0e-8a4c-0a8b6c1d2e3f",
			email:  "user@example.com",
			role:   "user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.email, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.email, claims.Email)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute)

	validToken, err := maker.GenerateToken("user-1", "user@example.com", "user")
	require.NoError(t, err)

	expired, err := NewJWTMaker(secretKey, -time.Hour).GenerateToken("user-1", "user@example.com", "user")
	require.NoError(t, err)

	wrongSecret, err := NewJWTMaker("wrong_secret_key", 15*time.Minute).GenerateToken("user-1", "user@example.com", "user")
	require.NoError(t, err)

	noUser, err := maker.GenerateToken("", "user@example.com", "user")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: wrongSecret},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "missing user id", token: noUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}
