package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "12345678901234567890123456789012"

func TestJWTMaker(t *testing.T) {
	maker, err := NewJWTMaker(testSecretKey)
	require.NoError(t, err)

	userID := "investor-42"
	duration := time.Minute

	tokenString, payload, err := maker.CreateToken(userID, duration)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)
	require.NotNil(t, payload)

	verified, err := maker.VerifyToken(tokenString)
	require.NoError(t, err)
	require.Equal(t, userID, verified.Subject)
	require.Equal(t, "fundlane", verified.Issuer)
	require.NotEmpty(t, verified.ID)
	require.WithinDuration(t, time.Now().Add(duration), verified.ExpiresAt.Time, time.Second)
}

func TestJWTMakerRejectsShortSecret(t *testing.T) {
	_, err := NewJWTMaker(strings.Repeat("x", minSecretKeySize-1))
	require.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	maker, err := NewJWTMaker(testSecretKey)
	require.NoError(t, err)

	tokenString, _, err := maker.CreateToken("investor-42", -time.Minute)
	require.NoError(t, err)

	_, err = maker.VerifyToken(tokenString)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestInvalidTokenAlgNone(t *testing.T) {
	payload, err := NewPayload("investor-42", time.Minute)
	require.NoError(t, err)

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodNone, payload)
	tokenString, err := jwtToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	maker, err := NewJWTMaker(testSecretKey)
	require.NoError(t, err)

	_, err = maker.VerifyToken(tokenString)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSignedWithDifferentKey(t *testing.T) {
	maker, err := NewJWTMaker(testSecretKey)
	require.NoError(t, err)

	otherMaker, err := NewJWTMaker(strings.Repeat("y", minSecretKeySize))
	require.NoError(t, err)

	tokenString, _, err := otherMaker.CreateToken("investor-42", time.Minute)
	require.NoError(t, err)

	_, err = maker.VerifyToken(tokenString)
	require.ErrorIs(t, err, ErrInvalidToken)
}
