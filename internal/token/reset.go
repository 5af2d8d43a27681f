package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/soran-dev/marketplace-auth/internal/model"
)

// ResetTokenizer produces the tokens embedded in password-reset links.
// A token is an issuance timestamp plus an HMAC over the user's id,
// current password hash and that timestamp. Binding the MAC to the
// password hash invalidates the link the moment the password changes;
// single use therefore needs no server-side state.
type ResetTokenizer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenizer(secret string, ttlHours int) *ResetTokenizer {
	return &ResetTokenizer{
		secret: []byte(secret),
		ttl:    time.Duration(ttlHours) * time.Hour,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Make returns a reset token for the user's current state.
func (t *ResetTokenizer) Make(u model.User) string {
	ts := t.now().Unix()
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), t.mac(u, ts))
}

// Check reports whether a token is authentic, unexpired and still bound
// to the user's current password hash.
func (t *ResetTokenizer) Check(u model.User, tok string) bool {
	dash := strings.IndexByte(tok, '-')
	if dash <= 0 {
		return false
	}
	ts, err := strconv.ParseInt(tok[:dash], 36, 64)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(tok[dash+1:]), []byte(t.mac(u, ts))) {
		return false
	}
	return t.now().Sub(time.Unix(ts, 0)) < t.ttl
}

func (t *ResetTokenizer) mac(u model.User, ts int64) string {
	m := hmac.New(sha256.New, t.secret)
	fmt.Fprintf(m, "%d|%s|%d", u.ID, u.PasswordHash, ts)
	return hex.EncodeToString(m.Sum(nil))
}

// EncodeUID packs a user id into the URL-safe form used in reset links.
func EncodeUID(id uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(s string) (uint64, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(b), 10, 64)
}
