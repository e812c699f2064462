package config

// mergeLLMProviders merges built-in and user-defined LLM provider
// configurations. User-defined providers override built-in providers with
// the same name.
func mergeLLMProviders(builtinProviders map[string]LLMProviderConfig, userProviders map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig, len(builtinProviders)+len(userProviders))

	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}

// mergeRateLimitPolicies merges built-in and user-defined rate-limit
// policies. User-defined policies override built-in policies of the same
// name.
func mergeRateLimitPolicies(builtinPolicies map[string]*RateLimitPolicy, userPolicies map[string]RateLimitPolicy) map[string]*RateLimitPolicy {
	result := make(map[string]*RateLimitPolicy, len(builtinPolicies)+len(userPolicies))

	for name, policy := range builtinPolicies {
		policyCopy := *policy
		result[name] = &policyCopy
	}

	for name, userPolicy := range userPolicies {
		policyCopy := userPolicy
		result[name] = &policyCopy
	}

	return result
}
