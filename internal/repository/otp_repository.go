package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/soran-dev/marketplace-auth/internal/model"
)

// OTPRepo persists one-time codes. Codes are matched on (user_id, code)
// and removed on successful verification.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Create inserts a code row and returns it with id and created_at filled.
func (r *OTPRepo) Create(ctx context.Context, userID uint64, code, purpose string) (model.OTPCode, error) {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO otp_codes (user_id, code, purpose, created_at) VALUES (?,?,?,?)",
		userID, code, purpose, now)
	if err != nil {
		return model.OTPCode{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.OTPCode{}, err
	}
	return model.OTPCode{ID: uint64(id), UserID: userID, Code: code, Purpose: purpose, CreatedAt: now}, nil
}

// FindByUserAndCode returns the first row matching (user_id, code).
// Purpose is deliberately not part of the match; the engine checks it so a
// mismatch can be reported without consuming the row.
func (r *OTPRepo) FindByUserAndCode(ctx context.Context, userID uint64, code string) (model.OTPCode, error) {
	var o model.OTPCode
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, code, purpose, created_at FROM otp_codes WHERE user_id=? AND code=? ORDER BY id LIMIT 1",
		userID, code).Scan(&o.ID, &o.UserID, &o.Code, &o.Purpose, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return model.OTPCode{}, ErrOTPNotFound
	}
	return o, err
}

// Consume deletes a code row by id. The rows-affected check makes a
// concurrent double-submit lose cleanly: the second caller gets
// ErrOTPNotFound instead of silently succeeding.
func (r *OTPRepo) Consume(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM otp_codes WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOTPNotFound
	}
	return nil
}
