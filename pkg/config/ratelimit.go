package config

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitPolicy defines a single sliding-window rate-limit rule.
type RateLimitPolicy struct {
	// Limit is the maximum number of requests allowed per Window.
	Limit int `yaml:"limit" validate:"required,min=1"`

	// Window is the sliding window duration.
	Window time.Duration `yaml:"window" validate:"required"`
}

// RateLimitPolicyRegistry stores named rate-limit policies (e.g. "login",
// "stage_execute", "export_create") with thread-safe access, mirroring the
// shape of LLMProviderRegistry.
type RateLimitPolicyRegistry struct {
	policies map[string]*RateLimitPolicy
	mu       sync.RWMutex
}

// NewRateLimitPolicyRegistry creates a new rate-limit policy registry.
func NewRateLimitPolicyRegistry(policies map[string]*RateLimitPolicy) *RateLimitPolicyRegistry {
	copied := make(map[string]*RateLimitPolicy, len(policies))
	for k, v := range policies {
		copied[k] = v
	}
	return &RateLimitPolicyRegistry{policies: copied}
}

// Get retrieves a policy by name (thread-safe).
func (r *RateLimitPolicyRegistry) Get(name string) (*RateLimitPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, exists := r.policies[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRateLimitPolicyNotFound, name)
	}
	return policy, nil
}

// GetAll returns all policies (thread-safe, returns copy).
func (r *RateLimitPolicyRegistry) GetAll() map[string]*RateLimitPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*RateLimitPolicy, len(r.policies))
	for k, v := range r.policies {
		result[k] = v
	}
	return result
}

// Len returns the number of registered policies (thread-safe).
func (r *RateLimitPolicyRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.policies)
}

// DefaultRateLimitPolicies returns the built-in policy set used when the
// YAML configuration does not override them, per the external-interfaces
// rate-limit table.
func DefaultRateLimitPolicies() map[string]*RateLimitPolicy {
	return map[string]*RateLimitPolicy{
		"login":          {Limit: 5, Window: 5 * time.Minute},
		"stage_execute":  {Limit: 20, Window: time.Minute},
		"export_create":  {Limit: 10, Window: time.Minute},
		"context_search": {Limit: 60, Window: time.Minute},
		"default":        {Limit: 120, Window: time.Minute},
	}
}
