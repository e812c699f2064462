package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/config"
)

func writeConfigFiles(t *testing.T, dir string, pipelineYAML, providersYAML string) {
	t.Helper()
	if pipelineYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte(pipelineYAML), 0o644))
	}
	if providersYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(providersYAML), 0o644))
	}
}

func TestInitialize_BuiltinProvidersOnly(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_PASSWORD", "test-password")

	dir := t.TempDir()

	cfg, err := config.Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, cfg.LLMProviderRegistry.Has("anthropic"))
	assert.True(t, cfg.LLMProviderRegistry.Has("bedrock"))
	assert.Equal(t, "anthropic", cfg.Defaults.LLMProvider)
	assert.Equal(t, 800, cfg.Defaults.ChunkSize)

	policy, err := cfg.GetRateLimitPolicy("login")
	require.NoError(t, err)
	assert.Equal(t, 5, policy.Limit)
}

func TestInitialize_UserProvidersOverrideBuiltins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_PASSWORD", "test-password")

	dir := t.TempDir()
	writeConfigFiles(t, dir, "", `
llm_providers:
  anthropic:
    type: anthropic
    model: claude-opus-4
    api_key_env: ANTHROPIC_API_KEY
    max_tokens: 8192
    temperature: 0.1
`)

	cfg, err := config.Initialize(context.Background(), dir)
	require.NoError(t, err)

	provider, err := cfg.GetLLMProvider("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4", provider.Model)
	assert.Equal(t, 8192, provider.MaxTokens)
}

func TestInitialize_InvalidDefaultProviderFails(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_PASSWORD", "test-password")

	dir := t.TempDir()
	writeConfigFiles(t, dir, `
defaults:
  llm_provider: does-not-exist
`, "")

	_, err := config.Initialize(context.Background(), dir)
	require.Error(t, err)
}
