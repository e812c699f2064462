package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration comprehensively with clear error
// messages. Struct-tag rules (required, min/max, oneof, ...) are delegated
// to go-playground/validator; cross-reference rules that tags cannot
// express (e.g. a default provider name must exist in the registry it
// references) are hand-written below, in the same order the teacher's
// validator used: structural tags first, then cross-references.
type Validator struct {
	cfg      *Config
	validate *validator.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, validate: validator.New()}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateStructTags(); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateRateLimits(); err != nil {
		return fmt.Errorf("rate limit validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateStructTags() error {
	if err := v.validate.Struct(v.cfg.Database); err != nil {
		return NewValidationError("database", "", "", err)
	}
	if err := v.validate.Struct(v.cfg.Auth); err != nil {
		return NewValidationError("auth", "", "", err)
	}
	if err := v.validate.Struct(v.cfg.Queue); err != nil {
		return NewValidationError("queue", "", "", err)
	}
	if err := v.validate.Struct(v.cfg.Retention); err != nil {
		return NewValidationError("retention", "", "", err)
	}
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if err := v.validate.Struct(provider); err != nil {
			return NewValidationError("llm_provider", name, "", err)
		}
	}
	for name, policy := range v.cfg.RateLimitPolicyRegistry.GetAll() {
		if err := v.validate.Struct(policy); err != nil {
			return NewValidationError("rate_limit", name, "", err)
		}
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	providers := v.cfg.LLMProviderRegistry.GetAll()
	if len(providers) == 0 {
		return NewValidationError("llm_provider", "", "", fmt.Errorf("at least one LLM provider must be configured"))
	}

	for name, provider := range providers {
		switch provider.Type {
		case LLMProviderAnthropic:
			if provider.APIKeyEnv == "" {
				return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("required for anthropic provider"))
			}
		case LLMProviderBedrock:
			if provider.RegionEnv == "" {
				return NewValidationError("llm_provider", name, "region_env", fmt.Errorf("required for bedrock provider"))
			}
		case LLMProviderHTTP:
			if provider.BaseURL == "" {
				return NewValidationError("llm_provider", name, "base_url", fmt.Errorf("required for http provider"))
			}
		}
	}

	return nil
}

func (v *Validator) validateRateLimits() error {
	for name, policy := range v.cfg.RateLimitPolicyRegistry.GetAll() {
		if policy.Window <= 0 {
			return NewValidationError("rate_limit", name, "window", fmt.Errorf("must be positive"))
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	defaults := v.cfg.Defaults
	if defaults == nil {
		return nil
	}

	if defaults.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(defaults.LLMProvider) {
		return NewValidationError("defaults", "", "llm_provider", fmt.Errorf("provider '%s' not found", defaults.LLMProvider))
	}

	if defaults.ChunkOverlap >= defaults.ChunkSize {
		return NewValidationError("defaults", "", "chunk_overlap", fmt.Errorf("must be smaller than chunk_size, got overlap=%d size=%d", defaults.ChunkOverlap, defaults.ChunkSize))
	}

	return nil
}
