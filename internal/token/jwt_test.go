package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_AccessRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)

	at, err := iss.IssueAccess(42)
	require.NoError(t, err)
	assert.NotEmpty(t, at.Token)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), at.Exp, 5*time.Second)

	uid, err := iss.VerifyAccess(at.Token)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestIssuer_RefreshRoundTrip(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)

	rt, err := iss.IssueRefresh(7)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), rt.Exp, 5*time.Second)

	uid, err := iss.VerifyRefresh(rt.Token)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
}

func TestIssuer_TypeMismatch(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)

	at, _ := iss.IssueAccess(1)
	rt, _ := iss.IssueRefresh(1)

	// An access token must not pass as a refresh token or vice versa.
	_, err := iss.VerifyRefresh(at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = iss.VerifyAccess(rt.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)
	at, _ := iss.IssueAccess(1)

	// Move the issuer clock past the expiry instead of sleeping.
	iss.now = func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }

	_, err := iss.VerifyAccess(at.Token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssuer_WrongSecret(t *testing.T) {
	at, _ := NewIssuer("secret1", 5, 24).IssueAccess(1)

	_, err := NewIssuer("secret2", 5, 24).VerifyAccess(at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsNonHMAC(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)

	claims := jwt.MapClaims{
		"user_id": 1,
		"typ":     "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Garbage(t *testing.T) {
	iss := NewIssuer("secret", 5, 24)
	_, err := iss.VerifyAccess("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
