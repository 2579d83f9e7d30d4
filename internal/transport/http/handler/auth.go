package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gokulp/beyond-stars-api/internal/domain"
	"github.com/gokulp/beyond-stars-api/internal/metrics"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Signup(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Profile(ctx context.Context, email string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

type AuthHandler struct {
	auth   authUsecaser
	logger *slog.Logger
}

func NewAuthHandler(auth authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With("component", "auth_handler"),
	}
}

type signupRequest struct {
	Email    string `json:"email"    binding:"required,min=3,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,min=3,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,min=3,max=255"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"        binding:"required,min=3,max=255"`
	OTP         string `json:"otp"          binding:"required,min=1,max=16"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Email       string `json:"email"`
}

// GET /api/health
func (h *AuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /api/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.auth.Signup(c.Request.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			metrics.SignupsTotal.WithLabelValues("conflict").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": errEmailExists})
			return
		}
		metrics.SignupsTotal.WithLabelValues("error").Inc()
		h.logger.ErrorContext(c.Request.Context(), "signup", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	c.JSON(http.StatusCreated, gin.H{"message": "Signup successful"})
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	signed, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		h.logger.ErrorContext(c.Request.Context(), "login", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		Email:       user.Email,
	})
}

// GET /api/profile
// Runs behind the Auth middleware, which puts the token subject in "email".
func (h *AuthHandler) Profile(c *gin.Context) {
	email := c.GetString("email")
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	user, err := h.auth.Profile(c.Request.Context(), email)
	if err != nil {
		// A valid token whose subject no longer exists is still a 401.
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "profile", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user.Email})
}

// POST /api/forgot-password
// The success body is identical whether or not the account exists; only
// delivery problems surface.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailUnconfigured):
			metrics.OTPRequestsTotal.WithLabelValues("unconfigured").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": errEmailUnconfigured})
		case errors.Is(err, domain.ErrEmailRejected):
			metrics.OTPRequestsTotal.WithLabelValues("delivery_failed").Inc()
			h.logger.ErrorContext(c.Request.Context(), "forgot password delivery", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": errEmailRejected})
		default:
			metrics.OTPRequestsTotal.WithLabelValues("error").Inc()
			h.logger.ErrorContext(c.Request.Context(), "forgot password", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.OTPRequestsTotal.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "If that email exists, a reset code has been sent."})
}

// POST /api/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeInvalid):
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": errCodeInvalid})
		case errors.Is(err, domain.ErrUserNotFound):
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": errUserNotFound})
		default:
			metrics.PasswordResetsTotal.WithLabelValues("error").Inc()
			h.logger.ErrorContext(c.Request.Context(), "reset password", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.PasswordResetsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
