package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ann@example.com", 120)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.ID)
	assert.Equal(t, "ann@example.com", claims.Email)
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("s3cret", 1, "a@b.c", 5)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", good.Token)
	assert.Error(t, err, "wrong secret")

	expired, err := NewAccessToken("s3cret", 1, "a@b.c", -5)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", noEmail)
	assert.ErrorIs(t, err, ErrMissingClaims)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"id": 7, "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", hs512)
	assert.Error(t, err, "only HS256 is accepted")
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	assert.True(t, IsBcryptHash(hash))

	ok, legacy := CheckPassword(hash, "hunter22")
	assert.True(t, ok)
	assert.False(t, legacy)

	ok, _ = CheckPassword(hash, "wrong")
	assert.False(t, ok)

	ok, legacy = CheckPassword("plain-pass", "plain-pass")
	assert.True(t, ok)
	assert.True(t, legacy)

	ok, legacy = CheckPassword("plain-pass", "nope")
	assert.False(t, ok)
	assert.False(t, legacy)
}

func TestFieldValidators(t *testing.T) {
	assert.True(t, ValidPincode("12345"))
	assert.False(t, ValidPincode("1234"))
	assert.False(t, ValidPincode("12a45"))

	assert.True(t, ValidAddressMobile("5551234567"))
	assert.False(t, ValidAddressMobile("555-123-4567"))

	assert.True(t, ValidProfileMobile("+1 (555) 123-4567"))
	assert.False(t, ValidProfileMobile("12345"))
	assert.False(t, ValidProfileMobile("call me"))
}
