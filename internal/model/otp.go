package model

import "time"

// OTP purposes. A code issued for one purpose can never be consumed by a
// flow expecting the other; the purpose check happens before expiry so a
// mismatched code is left untouched.
const (
	PurposeRegistration  = "registration"
	PurposePasswordReset = "password_reset"
)

// OTPCode models a row in the `otp_codes` table. Each code belongs to a
// user (cascade-deleted with it) and is valid for a fixed window from
// CreatedAt. Codes are deleted on successful verification; several
// outstanding codes per user and purpose are allowed.
type OTPCode struct {
	ID        uint64    // otp_codes.id
	UserID    uint64    // otp_codes.user_id
	Code      string    // otp_codes.code (6 digits, leading zeros kept)
	Purpose   string    // otp_codes.purpose
	CreatedAt time.Time // otp_codes.created_at
}
