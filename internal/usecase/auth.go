package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gokulp/beyond-stars-api/internal/domain"
	"github.com/gokulp/beyond-stars-api/internal/email"
	"github.com/gokulp/beyond-stars-api/internal/metrics"
	"github.com/gokulp/beyond-stars-api/internal/password"
	"github.com/gokulp/beyond-stars-api/internal/repository"
	"github.com/gokulp/beyond-stars-api/internal/token"
)

const (
	otpLength = 6
	otpTTL    = 15 * time.Minute
)

type AuthUsecase struct {
	users  repository.UserRepository
	otps   repository.ResetRepository
	hasher *password.Hasher
	tokens *token.Service
	email  email.Sender
}

func NewAuthUsecase(
	users repository.UserRepository,
	otps repository.ResetRepository,
	hasher *password.Hasher,
	tokens *token.Service,
	emailSender email.Sender,
) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		otps:   otps,
		hasher: hasher,
		tokens: tokens,
		email:  emailSender,
	}
}

// normalizeEmail is applied before every lookup so that casing and
// whitespace variants of the same address hit the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *AuthUsecase) Signup(ctx context.Context, emailAddr, pass string) (*domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)

	hash, err := u.hasher.Hash(pass)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.Create(ctx, emailAddr, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and returns a signed access token. A
// missing account and a wrong password are indistinguishable to the caller.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, pass string) (string, *domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)

	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if !u.hasher.Verify(pass, user.PasswordHash) {
		return "", nil, domain.ErrInvalidCredentials
	}

	signed, err := u.tokens.Issue(user.Email, time.Now())
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return signed, user, nil
}

func (u *AuthUsecase) Profile(ctx context.Context, emailAddr string) (*domain.User, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// ForgotPassword invalidates every outstanding code for the email, and, if
// the account exists, issues a fresh 6-digit code and emails it. Unknown
// emails return nil so the transport answer is identical either way; only
// delivery failures surface.
func (u *AuthUsecase) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)

	user, err := u.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Still invalidate: a stale code for a later-deleted account
			// must not stay redeemable.
			if err := u.otps.Invalidate(ctx, emailAddr); err != nil {
				return fmt.Errorf("invalidate otps: %w", err)
			}
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	otp, err := generateOTP(otpLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	otpHash, err := u.hasher.Hash(otp)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	if err := u.otps.Replace(ctx, emailAddr, otpHash, time.Now().Add(otpTTL)); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	body := fmt.Sprintf(
		"Your Beyond Stars password reset code is: %s\n\n"+
			"This code expires in %d minutes.\n"+
			"If you did not request this, you can safely ignore this email.",
		otp, int(otpTTL.Minutes()),
	)
	// The OTP row is already committed. If delivery fails the request
	// fails, and the undelivered code simply ages out in 15 minutes.
	if err := u.email.Send(ctx, user.Email, "Beyond Stars Password Reset Code", body); err != nil {
		metrics.EmailsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("send reset email: %w", err)
	}
	metrics.EmailsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// ResetPassword redeems the newest live code for the email. Wrong code,
// expired code and no code at all are one undifferentiated failure.
func (u *AuthUsecase) ResetPassword(ctx context.Context, emailAddr, otp, newPass string) error {
	emailAddr = normalizeEmail(emailAddr)

	record, err := u.otps.FindActive(ctx, emailAddr, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrCodeInvalid) {
			return domain.ErrCodeInvalid
		}
		return fmt.Errorf("find otp: %w", err)
	}

	if !u.hasher.Verify(otp, record.OTPHash) {
		return domain.ErrCodeInvalid
	}

	newHash, err := u.hasher.Hash(newPass)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := u.otps.Consume(ctx, record.ID, emailAddr, newHash); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrCodeInvalid) {
			return err
		}
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// generateOTP draws each digit independently from crypto/rand.
func generateOTP(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
