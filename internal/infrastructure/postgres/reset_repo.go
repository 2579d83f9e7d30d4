package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gokulp/beyond-stars-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ResetRepository struct {
	pool Querier
}

func NewResetRepository(pool Querier) *ResetRepository {
	return &ResetRepository{pool: pool}
}

func (r *ResetRepository) Invalidate(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE password_reset_otps SET used = TRUE WHERE email = $1 AND used = FALSE`,
		email,
	)
	if err != nil {
		return fmt.Errorf("invalidate otps: %w", err)
	}
	return nil
}

// Replace runs invalidate-then-insert in one transaction so that two
// concurrent requests for the same email can never leave two live codes.
func (r *ResetRepository) Replace(ctx context.Context, email, otpHash string, expiresAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx,
		`UPDATE password_reset_otps SET used = TRUE WHERE email = $1 AND used = FALSE`,
		email,
	); err != nil {
		return fmt.Errorf("invalidate otps: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO password_reset_otps (email, otp_hash, expires_at) VALUES ($1, $2, $3)`,
		email, otpHash, expiresAt,
	); err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *ResetRepository) FindActive(ctx context.Context, email string, now time.Time) (*domain.PasswordResetOTP, error) {
	query := `
		SELECT id, email, otp_hash, expires_at, used
		FROM password_reset_otps
		WHERE email = $1 AND used = FALSE AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`

	var o domain.PasswordResetOTP
	err := r.pool.QueryRow(ctx, query, email, now).
		Scan(&o.ID, &o.Email, &o.OTPHash, &o.ExpiresAt, &o.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeInvalid
		}
		return nil, fmt.Errorf("find active otp: %w", err)
	}
	return &o, nil
}

// Consume marks the OTP used and swaps the user's password hash in one
// transaction, so a code can never end up consumed without the password
// actually changing (or vice versa).
func (r *ResetRepository) Consume(ctx context.Context, otpID int64, email, passwordHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE password_reset_otps SET used = TRUE WHERE id = $1 AND used = FALSE`,
		otpID,
	)
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeInvalid
	}

	tag, err = tx.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
