package repository

import (
	"context"
	"time"

	"github.com/gokulp/beyond-stars-api/internal/domain"
)

// ResetRepository persists password-reset OTP rows. Rows are only ever
// inserted or flipped to used=true, never deleted.
type ResetRepository interface {
	// Invalidate marks every unused OTP for the email as used.
	Invalidate(ctx context.Context, email string) error

	// Replace atomically invalidates all unused OTPs for the email and
	// inserts a fresh one, so at most one code is ever live.
	Replace(ctx context.Context, email, otpHash string, expiresAt time.Time) error

	// FindActive returns the newest unused, unexpired OTP for the email,
	// or domain.ErrCodeInvalid if there is none.
	FindActive(ctx context.Context, email string, now time.Time) (*domain.PasswordResetOTP, error)

	// Consume atomically marks the OTP used and sets the user's password
	// hash. Returns domain.ErrUserNotFound if no user row matches the email.
	Consume(ctx context.Context, otpID int64, email, passwordHash string) error
}
