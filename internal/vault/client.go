package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adaptive-trading-bot/config"

	"github.com/hashicorp/vault/api"
)

// ErrSecretNotFound is returned when the secret path holds no data
var ErrSecretNotFound = errors.New("secret not found")

// Secrets are the service credentials kept out of config files
type Secrets struct {
	JWTSecret         string `json:"jwt_secret"`
	AdminPasswordHash string `json:"admin_password_hash"`
	RedisURL          string `json:"redis_url"`
	PostgresDSN       string `json:"postgres_dsn"`
}

func (s Secrets) toData() map[string]interface{} {
	return map[string]interface{}{
		"jwt_secret":          s.JWTSecret,
		"admin_password_hash": s.AdminPasswordHash,
		"redis_url":           s.RedisURL,
		"postgres_dsn":        s.PostgresDSN,
	}
}

// logical is the subset of api.Logical the client uses
type logical interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client  *api.Client
	logical logical
	config  config.VaultConfig
	mu      sync.RWMutex
	cache   *Secrets
}

// NewClient creates a new Vault client. A disabled client serves secrets
// from its in-memory cache only.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:  client,
		logical: client.Logical(),
		config:  cfg,
	}, nil
}

// GetSecrets reads the service secrets, serving from cache after the
// first successful read
func (c *Client) GetSecrets(ctx context.Context) (*Secrets, error) {
	c.mu.RLock()
	if c.cache != nil {
		cached := *c.cache
		c.mu.RUnlock()
		return &cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("%w: vault is disabled", ErrSecretNotFound)
	}

	secret, err := c.logical.ReadWithContext(ctx, c.secretPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}

	// KV v2 nests the payload under "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	secrets := &Secrets{
		JWTSecret:         getString(data, "jwt_secret"),
		AdminPasswordHash: getString(data, "admin_password_hash"),
		RedisURL:          getString(data, "redis_url"),
		PostgresDSN:       getString(data, "postgres_dsn"),
	}

	c.mu.Lock()
	cached := *secrets
	c.cache = &cached
	c.mu.Unlock()

	return secrets, nil
}

// StoreSecrets writes the service secrets
func (c *Client) StoreSecrets(ctx context.Context, secrets Secrets) error {
	if c.config.Enabled {
		payload := map[string]interface{}{"data": secrets.toData()}
		if _, err := c.logical.WriteWithContext(ctx, c.secretPath(), payload); err != nil {
			return fmt.Errorf("failed to store secrets in vault: %w", err)
		}
	}

	c.mu.Lock()
	c.cache = &secrets
	c.mu.Unlock()
	return nil
}

// Apply overlays the non-empty secrets on cfg
func (c *Client) Apply(ctx context.Context, cfg *config.Config) error {
	secrets, err := c.GetSecrets(ctx)
	if err != nil {
		return err
	}

	if secrets.JWTSecret != "" {
		cfg.Auth.JWTSecret = secrets.JWTSecret
	}
	if secrets.AdminPasswordHash != "" {
		cfg.Auth.AdminPasswordHash = secrets.AdminPasswordHash
	}
	if secrets.RedisURL != "" {
		cfg.Redis.URL = secrets.RedisURL
	}
	if secrets.PostgresDSN != "" {
		cfg.Database.DSN = secrets.PostgresDSN
	}
	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled || c.client == nil {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of the service secrets
func (c *Client) secretPath() string {
	return fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
