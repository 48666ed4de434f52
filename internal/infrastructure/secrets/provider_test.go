package secrets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlgprojects/admission/internal/infrastructure/secrets"
)

func TestEnvProvider_ConfiguredSeed(t *testing.T) {
	provider := secrets.NewEnvProvider("configured-seed")

	seed, err := provider.KeyDerivationSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("configured-seed"), seed)
}

func TestEnvProvider_EnvironmentFallback(t *testing.T) {
	t.Setenv("ADMISSION_KEY_SEED", "env-seed")

	provider := secrets.NewEnvProvider("")

	seed, err := provider.KeyDerivationSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("env-seed"), seed)
}

func TestEnvProvider_MissingSeed(t *testing.T) {
	t.Setenv("ADMISSION_KEY_SEED", "")

	provider := secrets.NewEnvProvider("")

	_, err := provider.KeyDerivationSecret(context.Background())
	assert.Error(t, err)
}
