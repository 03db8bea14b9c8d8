package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	userID := uuid.New()

	token, err := GenerateAccessToken(userID, "alice@example.com", "secret", "messagerie", time.Hour)
	req.NoError(err)

	claims, err := ParseAccessToken(token, "secret")
	req.NoError(err)
	req.Equal(userID, claims.UserID)
	req.Equal("alice@example.com", claims.Email)
	req.Equal("messagerie", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateAccessToken(uuid.New(), "alice@example.com", "secret", "messagerie", time.Hour)
	req.NoError(err)

	_, err = ParseAccessToken(token, "other-secret")
	req.Error(err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateAccessToken(uuid.New(), "alice@example.com", "secret", "messagerie", -time.Minute)
	req.NoError(err)

	_, err = ParseAccessToken(token, "secret")
	req.Error(err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken("definitely-not-a-jwt", "secret")
	require.Error(t, err)
}
