package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"adaptive-trading-bot/internal/logging"
)

// Service authenticates the single operator account that controls the engine
type Service struct {
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	username        string
	passwordHash    string
	logger          *logging.Logger
}

// NewService builds the service. A plain AdminPassword is hashed once here
// so only the hash stays in memory.
func NewService(config Config, logger *logging.Logger) (*Service, error) {
	if config.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if config.AdminUsername == "" {
		return nil, errors.New("admin username is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	defaults := DefaultConfig()
	if config.AccessTokenDuration <= 0 {
		config.AccessTokenDuration = defaults.AccessTokenDuration
	}
	if config.RefreshTokenDuration <= 0 {
		config.RefreshTokenDuration = defaults.RefreshTokenDuration
	}

	passwords := NewPasswordManager(config.BcryptCost)
	hash := config.AdminPasswordHash
	if hash == "" && config.AdminPassword != "" {
		if err := passwords.ValidatePasswordStrength(config.AdminPassword); err != nil {
			logger.Warn("Weak operator password", "error", err.Error())
		}
		var err error
		hash, err = passwords.HashPassword(config.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}
	if hash == "" {
		logger.Warn("No operator password configured, logins will be refused")
	}

	return &Service{
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration),
		passwordManager: passwords,
		username:        config.AdminUsername,
		passwordHash:    hash,
		logger:          logger.WithComponent("auth"),
	}, nil
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// Login checks the operator credentials and issues a token pair
func (s *Service) Login(username, password string) (*TokenPair, error) {
	if s.passwordHash == "" {
		return nil, ErrNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := s.passwordManager.VerifyPassword(password, s.passwordHash)
	if !userOK || !passOK {
		s.logger.Warn("Rejected login", "username", username)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.jwtManager.GenerateTokenPair(OperatorClaims{Username: s.username, Role: RoleAdmin})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Operator logged in", "username", username)
	return pair, nil
}
