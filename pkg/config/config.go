package config

import "time"

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. This is the primary
// object returned by Initialize and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide defaults
	Defaults *Defaults

	Database  *DatabaseSettings
	Redis     *RedisSettings
	Auth      *AuthSettings
	Queue     *QueueSettings
	Retention *RetentionSettings
	Export    *ExportSettings

	// Component registries
	LLMProviderRegistry     *LLMProviderRegistry
	RateLimitPolicyRegistry *RateLimitPolicyRegistry

	// Secrets is the secret broker (spec.md §6); environment-backed by
	// default since no network broker is reachable in this rendering.
	Secrets SecretBroker
}

// QueueSettings tunes the background worker pool that generates exports.
type QueueSettings struct {
	WorkerCount          int           `yaml:"worker_count" validate:"required,min=1"`
	PollInterval         time.Duration `yaml:"poll_interval" validate:"required"`
	MaxConcurrentExports int           `yaml:"max_concurrent_exports" validate:"required,min=1"`
}

// RetentionSettings tunes the background retention/cleanup sweep that
// expires exports past their expires_at.
type RetentionSettings struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"required"`
}

// ExportSettings tunes where generated export archives are written and
// the bounds the export service enforces on client-requested expiry.
type ExportSettings struct {
	StorageDir     string `yaml:"storage_dir" validate:"required"`
	DefaultFormat  string `yaml:"default_format" validate:"omitempty,oneof=zip"`
	MinExpiryHours int    `yaml:"min_expiry_hours" validate:"omitempty,min=1"`
	MaxExpiryHours int    `yaml:"max_expiry_hours" validate:"omitempty,min=1"`
}

// DatabaseSettings holds the relational/vector store connection parameters.
type DatabaseSettings struct {
	Host               string        `yaml:"host" validate:"required"`
	Port               int           `yaml:"port" validate:"required,min=1,max=65535"`
	User               string        `yaml:"user" validate:"required"`
	PasswordEnv        string        `yaml:"password_env" validate:"required"`
	Database           string        `yaml:"database" validate:"required"`
	SSLMode            string        `yaml:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns       int           `yaml:"max_open_conns" validate:"omitempty,min=1"`
	MaxIdleConns       int           `yaml:"max_idle_conns" validate:"omitempty,min=0"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime" validate:"omitempty"`
	VectorDimensions   int           `yaml:"vector_dimensions" validate:"required,min=1"`
}

// RedisSettings holds the KV/rate-limit/pub-sub backend parameters.
type RedisSettings struct {
	Addr        string `yaml:"addr" validate:"required"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db" validate:"omitempty,min=0"`
}

// AuthSettings holds JWT/bcrypt tunables for the auth service.
type AuthSettings struct {
	JWTSecretEnv        string        `yaml:"jwt_secret_env" validate:"required"`
	AccessTokenTTL      time.Duration `yaml:"access_token_ttl" validate:"required"`
	RefreshTokenTTL     time.Duration `yaml:"refresh_token_ttl" validate:"required"`
	BcryptCost          int           `yaml:"bcrypt_cost" validate:"omitempty,min=4,max=31"`
}

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	LLMProviders int
	RateLimits   int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders: c.LLMProviderRegistry.Len(),
		RateLimits:   c.RateLimitPolicyRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// GetRateLimitPolicy retrieves a named rate-limit policy.
func (c *Config) GetRateLimitPolicy(name string) (*RateLimitPolicy, error) {
	return c.RateLimitPolicyRegistry.Get(name)
}
