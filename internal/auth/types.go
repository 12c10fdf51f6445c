package auth

import (
	"time"
)

// Roles carried in operator tokens
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// OperatorClaims are the application claims embedded in an access token
type OperatorClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the operator may mutate engine state
func (c OperatorClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // Access token expiry in seconds
	TokenType    string `json:"token_type"` // Always "Bearer"
}

// LoginRequest represents an operator login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Config holds authentication configuration
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// JWT settings
	JWTSecret            string        `json:"jwt_secret" yaml:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration" yaml:"access_token_duration" default:"15m"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration" yaml:"refresh_token_duration" default:"168h"`

	// Operator credentials. AdminPasswordHash wins over AdminPassword.
	AdminUsername     string `json:"admin_username" yaml:"admin_username" default:"admin"`
	AdminPassword     string `json:"admin_password" yaml:"admin_password"`
	AdminPasswordHash string `json:"admin_password_hash" yaml:"admin_password_hash"`
	BcryptCost        int    `json:"bcrypt_cost" yaml:"bcrypt_cost" default:"12"`
}

// DefaultConfig returns default authentication configuration
func DefaultConfig() Config {
	return Config{
		Enabled:              false,
		JWTSecret:            "", // Must be set when enabled
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		AdminUsername:        "admin",
		BcryptCost:           DefaultBcryptCost,
	}
}

// AuthError is an authentication failure with a stable code
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidCredentials = AuthError{Code: "INVALID_CREDENTIALS", Message: "invalid username or password"}
	ErrInvalidToken       = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden          = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrNotConfigured      = AuthError{Code: "AUTH_NOT_CONFIGURED", Message: "operator credentials are not configured"}
)
