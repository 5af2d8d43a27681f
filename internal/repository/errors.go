// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// service to distinguish between different failure scenarios without
// depending on database/sql internals.
package repository

import "errors"

// ErrEmailExists is returned when an insert or update collides with the
// unique index on users.email.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a lookup matches no user row.
var ErrUserNotFound = errors.New("user not found")

// ErrOTPNotFound is returned when no OTP row matches a lookup, or when a
// consume races another request and loses (the row is already gone).
var ErrOTPNotFound = errors.New("otp not found")
