// Package otp implements issuing and verifying one-time codes. Codes are
// six decimal digits, purpose-tagged, valid for a fixed window and
// consumed on first successful verification.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/repository"
)

// DefaultTTL is how long a code stays valid after issuance.
const DefaultTTL = 300 * time.Second

var (
	// ErrNotFound: no code matches (user, submitted code), or a concurrent
	// request consumed it first.
	ErrNotFound = errors.New("otp not found")
	// ErrWrongPurpose: the matched code was issued for a different flow.
	// The code is left in place.
	ErrWrongPurpose = errors.New("otp purpose mismatch")
	// ErrExpired: the matched code is older than the TTL. The code is left
	// in place so the caller can re-issue.
	ErrExpired = errors.New("otp expired")
)

// Store is the persistence the engine needs. *repository.OTPRepo
// satisfies it.
type Store interface {
	Create(ctx context.Context, userID uint64, code, purpose string) (model.OTPCode, error)
	FindByUserAndCode(ctx context.Context, userID uint64, code string) (model.OTPCode, error)
	Consume(ctx context.Context, id uint64) error
}

// Engine coordinates code generation, lookup and consumption.
type Engine struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, ttl: DefaultTTL, now: func() time.Time { return time.Now().UTC() }}
}

// Issue generates a uniform six-digit code (leading zeros kept), persists
// it with the given purpose and returns it for out-of-band delivery.
func (e *Engine) Issue(ctx context.Context, userID uint64, purpose string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if _, err := e.store.Create(ctx, userID, code, purpose); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks a submitted code for a user and purpose. The purpose check
// runs before the expiry check, matching the order failures are reported
// in. Only a fully valid code is consumed; a lost consume race surfaces as
// ErrNotFound.
func (e *Engine) Verify(ctx context.Context, userID uint64, code, purpose string) error {
	rec, err := e.store.FindByUserAndCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return ErrNotFound
		}
		return err
	}
	if rec.Purpose != purpose {
		return ErrWrongPurpose
	}
	if e.now().Sub(rec.CreatedAt) >= e.ttl {
		return ErrExpired
	}
	if err := e.store.Consume(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
