package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSecretBroker_PutGetDelete(t *testing.T) {
	b := NewEnvSecretBroker()
	ctx := context.Background()

	require.NoError(t, b.PutSecret(ctx, "ai/testprovider", map[string]string{"api_key": "sk-abc123"}))
	t.Cleanup(func() { _ = b.DeleteSecret(ctx, "ai/testprovider") })

	values, err := b.GetSecret(ctx, "ai/testprovider")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", values["api_key"])

	require.NoError(t, b.DeleteSecret(ctx, "ai/testprovider"))

	values, err = b.GetSecret(ctx, "ai/testprovider")
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestEnvSecretBroker_GetSecret_MissingPathReturnsNilMap(t *testing.T) {
	b := NewEnvSecretBroker()
	values, err := b.GetSecret(context.Background(), "database/nowhere")
	require.NoError(t, err)
	assert.Nil(t, values)
}
