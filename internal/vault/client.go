package vault

import (
	"context"
	"fmt"
	"sync"

	"bsc-invest-platform/config"

	"github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault client for hot-wallet signing keys.
// When Vault is disabled the client degrades to an in-memory store so
// development setups can inject the key through the environment instead.
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	local map[string]string
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			local:  make(map[string]string),
		}, nil
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
		client: client,
		config: cfg,
		local:  make(map[string]string),
	}, nil
}

// StoreSigningKey stores a private key under the given name
func (c *Client) StoreSigningKey(ctx context.Context, name, privateKeyHex string) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.local[name] = privateKeyHex
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"private_key": privateKeyHex,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(name), secretData); err != nil {
		return fmt.Errorf("failed to store signing key in vault: %w", err)
	}
	return nil
}

// GetSigningKey retrieves a private key by name
func (c *Client) GetSigningKey(ctx context.Context, name string) (string, error) {
	if !c.config.Enabled {
		c.mu.RLock()
		key, ok := c.local[name]
		c.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("signing key %q not found and vault is disabled", name)
		}
		return key, nil
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(name))
	if err != nil {
		return "", fmt.Errorf("failed to read signing key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("signing key %q not found", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid secret format for signing key %q", name)
	}

	key, ok := data["private_key"].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("signing key %q is empty", name)
	}
	return key, nil
}

// DeleteSigningKey removes a private key by name
func (c *Client) DeleteSigningKey(ctx context.Context, name string) error {
	if !c.config.Enabled {
		c.mu.Lock()
		delete(c.local, name)
		c.mu.Unlock()
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(name)); err != nil {
		return fmt.Errorf("failed to delete signing key from vault: %w", err)
	}
	return nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
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

func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/signing-keys/%s", c.config.MountPath, name)
}

func (c *Client) metadataPath(name string) string {
	return fmt.Sprintf("%s/metadata/signing-keys/%s", c.config.MountPath, name)
}
