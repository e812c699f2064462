package config

// BuiltinLLMProviders returns the provider set available out of the box,
// before any llm-providers.yaml overrides are merged in. The default
// provider (anthropic) is always usable from just an API key env var; the
// bedrock entry additionally backs embedding generation (see pkg/embedding).
func BuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"anthropic": {
			Type:        LLMProviderAnthropic,
			Model:       "claude-sonnet-4-20250514",
			APIKeyEnv:   "ANTHROPIC_API_KEY",
			MaxTokens:   4096,
			Temperature: 0.2,
			Priority:    0,
		},
		"bedrock": {
			Type:        LLMProviderBedrock,
			Model:       "anthropic.claude-3-5-sonnet-20241022-v2:0",
			RegionEnv:   "AWS_REGION",
			MaxTokens:   4096,
			Temperature: 0.2,
			Priority:    1,
		},
	}
}
