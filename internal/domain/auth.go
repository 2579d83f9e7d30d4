package domain

import (
	"errors"
	"time"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrCodeInvalid        = errors.New("invalid or expired reset code")
	ErrEmailUnconfigured  = errors.New("email service is not configured")
	ErrEmailRejected      = errors.New("email provider rejected the message")
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PasswordResetOTP is one reset attempt. The email column is matched by
// value, not a foreign key, so rows survive independently of the user.
// Rows are never deleted; consumed or superseded ones just stay used=true.
type PasswordResetOTP struct {
	ID        int64
	Email     string
	OTPHash   string
	ExpiresAt time.Time
	Used      bool
}
