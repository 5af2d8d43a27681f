// Package token mints and verifies the credentials this service hands
// out: HS256 JWT access/refresh pairs and HMAC-signed password-reset
// link tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, wrong signing methods, wrong
	// token type and malformed claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for structurally valid but expired tokens.
	ErrExpiredToken = errors.New("token expired")
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and carried either in the Authorization
// header or the access_token cookie.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken is a long-lived signed token used solely to mint new
// access tokens. It is not persisted server-side; validity rests on the
// signature and expiry alone.
type RefreshToken struct {
	Token string
	Exp   time.Time
}

// Issuer signs and verifies token pairs with a shared HMAC secret.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer builds an Issuer. TTLs follow the config units: minutes for
// access tokens, hours for refresh tokens.
func NewIssuer(secret string, accessTTLMin, refreshTTLHours int) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLHours) * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (i *Issuer) sign(userID uint64, typ string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"user_id": userID,
		"typ":     typ,
		"exp":     exp.Unix(),
		"iat":     now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueAccess mints a short-lived access token for a user.
func (i *Issuer) IssueAccess(userID uint64) (AccessToken, error) {
	signed, exp, err := i.sign(userID, "access", i.accessTTL)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// IssueRefresh mints a long-lived refresh token for a user.
func (i *Issuer) IssueRefresh(userID uint64) (RefreshToken, error) {
	signed, exp, err := i.sign(userID, "refresh", i.refreshTTL)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Exp: exp}, nil
}

// VerifyAccess checks signature, expiry and token type of an access token
// and returns the user id claim.
func (i *Issuer) VerifyAccess(raw string) (uint64, error) {
	return i.verify(raw, "access")
}

// VerifyRefresh is VerifyAccess for refresh tokens.
func (i *Issuer) VerifyRefresh(raw string) (uint64, error) {
	return i.verify(raw, "refresh")
}

func (i *Issuer) verify(raw, typ string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return 0, ErrInvalidToken
	}
	if claims["typ"] != typ {
		return 0, ErrInvalidToken
	}
	// JWT numeric values decode as float64.
	uid, ok := claims["user_id"].(float64)
	if !ok || uid <= 0 {
		return 0, ErrInvalidToken
	}
	return uint64(uid), nil
}
