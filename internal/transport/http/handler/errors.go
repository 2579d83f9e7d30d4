package handler

const (
	errInternalServer     = "Internal server error"
	errEmailExists        = "Email already exists"
	errInvalidCredentials = "Invalid email or password"
	errUnauthorized       = "Unauthorized"
	errCodeInvalid        = "Invalid or expired reset code"
	errUserNotFound       = "User not found"
	errEmailUnconfigured  = "Email service is not configured"
	errEmailRejected      = "Email provider rejected the message"
)
