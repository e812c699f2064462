package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PipelineYAMLConfig represents the complete pipeline.yaml file structure.
type PipelineYAMLConfig struct {
	Defaults    *Defaults                  `yaml:"defaults"`
	Database    *DatabaseSettings          `yaml:"database"`
	Redis       *RedisSettings             `yaml:"redis"`
	Auth        *AuthSettings              `yaml:"auth"`
	Queue       *QueueSettings             `yaml:"queue"`
	Retention   *RetentionSettings         `yaml:"retention"`
	Export      *ExportSettings            `yaml:"export"`
	RateLimits  map[string]RateLimitPolicy `yaml:"rate_limits"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure.
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load .env (if present) so {{.VAR}} expansion below can see it
//  2. Load YAML files from configDir
//  3. Expand environment variables
//  4. Parse YAML into structs
//  5. Merge built-in + user-defined configurations
//  6. Build in-memory registries
//  7. Apply default values
//  8. Validate all configuration
//  9. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "error", err)
	}

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"llm_providers", stats.LLMProviders,
		"rate_limits", stats.RateLimits)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	pipelineConfig, err := loader.loadPipelineYAML()
	if err != nil {
		return nil, NewLoadError("pipeline.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	builtinProviders := BuiltinLLMProviders()
	llmProvidersMerged := mergeLLMProviders(builtinProviders, llmProviders)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	rateLimitsMerged := mergeRateLimitPolicies(DefaultRateLimitPolicies(), pipelineConfig.RateLimits)
	rateLimitRegistry := NewRateLimitPolicyRegistry(rateLimitsMerged)

	defaults := pipelineConfig.Defaults
	if defaults == nil {
		defaults = DefaultDefaults()
	} else {
		applyDefaultFallbacks(defaults)
	}

	database := pipelineConfig.Database
	if database == nil {
		database = defaultDatabaseSettings()
	}

	redis := pipelineConfig.Redis
	if redis == nil {
		redis = &RedisSettings{Addr: "localhost:6379"}
	}

	auth := pipelineConfig.Auth
	if auth == nil {
		auth = defaultAuthSettings()
	}

	queue := pipelineConfig.Queue
	if queue == nil {
		queue = defaultQueueSettings()
	}

	retention := pipelineConfig.Retention
	if retention == nil {
		retention = defaultRetentionSettings()
	}

	export := pipelineConfig.Export
	if export == nil {
		export = defaultExportSettings()
	}

	return &Config{
		configDir:               configDir,
		Defaults:                defaults,
		Database:                database,
		Redis:                   redis,
		Auth:                    auth,
		Queue:                   queue,
		Retention:               retention,
		Export:                  export,
		LLMProviderRegistry:     llmProviderRegistry,
		RateLimitPolicyRegistry: rateLimitRegistry,
		Secrets:                 NewEnvSecretBroker(),
	}, nil
}

func applyDefaultFallbacks(d *Defaults) {
	fallback := DefaultDefaults()
	if d.LLMProvider == "" {
		d.LLMProvider = fallback.LLMProvider
	}
	if d.MaxRetrievalChunks == 0 {
		d.MaxRetrievalChunks = fallback.MaxRetrievalChunks
	}
	if d.ChunkSize == 0 {
		d.ChunkSize = fallback.ChunkSize
	}
	if d.ChunkOverlap == 0 {
		d.ChunkOverlap = fallback.ChunkOverlap
	}
	if d.TechnologyStack == "" {
		d.TechnologyStack = fallback.TechnologyStack
	}
	if d.InterStagePause == 0 {
		d.InterStagePause = fallback.InterStagePause
	}
}

func defaultDatabaseSettings() *DatabaseSettings {
	return &DatabaseSettings{
		Host:             "localhost",
		Port:             5432,
		User:             "pipeline",
		PasswordEnv:      "DATABASE_PASSWORD",
		Database:         "pipeline",
		SSLMode:          "disable",
		MaxOpenConns:     20,
		MaxIdleConns:     5,
		ConnMaxLifetime:  30 * time.Minute,
		VectorDimensions: 1536,
	}
}

func defaultAuthSettings() *AuthSettings {
	return &AuthSettings{
		JWTSecretEnv:    "JWT_SECRET",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		BcryptCost:      12,
	}
}

func defaultQueueSettings() *QueueSettings {
	return &QueueSettings{
		WorkerCount:          2,
		PollInterval:         2 * time.Second,
		MaxConcurrentExports: 4,
	}
}

func defaultRetentionSettings() *RetentionSettings {
	return &RetentionSettings{
		CleanupInterval: 15 * time.Minute,
	}
}

func defaultExportSettings() *ExportSettings {
	return &ExportSettings{
		StorageDir:     "/var/lib/jeex/exports",
		DefaultFormat:  "zip",
		MinExpiryHours: 1,
		MaxExpiryHours: 168,
	}
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand {{.VAR}} references before parsing. On a missing variable
	// the reference expands to an empty string; validation (not parsing)
	// is responsible for catching a required field left empty this way.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

// loadPipelineYAML loads pipeline.yaml. A missing file is not an error:
// every field falls back to its built-in default.
func (l *configLoader) loadPipelineYAML() (*PipelineYAMLConfig, error) {
	var cfg PipelineYAMLConfig
	cfg.RateLimits = make(map[string]RateLimitPolicy)

	if err := l.loadYAML("pipeline.yaml", &cfg); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return &cfg, nil
		}
		return nil, err
	}

	return &cfg, nil
}

// loadLLMProvidersYAML loads llm-providers.yaml. A missing file is not an
// error: the built-in provider set still applies.
func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var cfg LLMProvidersYAMLConfig
	cfg.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &cfg); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return cfg.LLMProviders, nil
		}
		return nil, err
	}

	return cfg.LLMProviders, nil
}
