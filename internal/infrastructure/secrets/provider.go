// Package secrets supplies the key-derivation secret seeding client key
// hashing. The env provider reads it from configuration; the Vault provider
// fetches it from a KV mount at startup.
package secrets

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.SecretProvider = (*EnvProvider)(nil)
var _ service.SecretProvider = (*VaultProvider)(nil)

// envKeySeed is consulted when no seed is configured directly.
const envKeySeed = "ADMISSION_KEY_SEED"

// EnvProvider serves the key-derivation secret from configuration or the
// environment. Suitable for single-tenant deployments; fleets sharing
// admission state should use Vault so every instance derives identical keys.
type EnvProvider struct {
	seed string
}

// NewEnvProvider creates a provider over the configured seed, falling back
// to the ADMISSION_KEY_SEED environment variable.
func NewEnvProvider(seed string) *EnvProvider {
	if seed == "" {
		seed = os.Getenv(envKeySeed)
	}
	return &EnvProvider{seed: seed}
}

// KeyDerivationSecret returns the seed bytes.
func (p *EnvProvider) KeyDerivationSecret(ctx context.Context) ([]byte, error) {
	if p.seed == "" {
		return nil, fmt.Errorf("key derivation seed not configured")
	}
	return []byte(p.seed), nil
}

// VaultProvider fetches the key-derivation secret from a Vault KV v2 mount.
type VaultProvider struct {
	client *vault.Client
	path   string
	logger logger.Logger
}

// VaultProviderConfig configures the Vault provider.
type VaultProviderConfig struct {
	Addr  string
	Token string

	// Path is the KV v2 read path, e.g. secret/data/admission/key-seed.
	Path string
}

// NewVaultProvider creates a Vault-backed provider.
func NewVaultProvider(cfg VaultProviderConfig, log logger.Logger) (*VaultProvider, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Addr

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultProvider{
		client: client,
		path:   cfg.Path,
		logger: log.WithComponent("vault_secrets"),
	}, nil
}

// KeyDerivationSecret reads the seed from the configured path. The secret is
// expected under data.key_seed following the KV v2 layout.
func (p *VaultProvider) KeyDerivationSecret(ctx context.Context) ([]byte, error) {
	secret, err := p.client.Logical().ReadWithContext(ctx, p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key seed from vault: %w", err)
	}
	if secret == nil || secret.Data["data"] == nil {
		return nil, fmt.Errorf("key seed not found at %s", p.path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected secret format at %s", p.path)
	}

	seed, ok := data["key_seed"].(string)
	if !ok || seed == "" {
		return nil, fmt.Errorf("key_seed missing or empty at %s", p.path)
	}

	p.logger.Info(ctx, "key derivation seed loaded from vault")
	return []byte(seed), nil
}
