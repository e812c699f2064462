package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretBroker is the minimal secrets-management interface named by
// spec.md §6: get/put/delete against conventional paths ("auth/jwt",
// "ai/{provider}", "database/*", "cache/*"). The system must keep
// operating, in degraded mode, if a broker is unreachable, falling back
// to plain environment values — EnvSecretBroker below *is* that
// fallback, not a stand-in for a missing Vault client; no network broker
// is reachable in this rendering, so it is the only implementation
// registered at startup (see Config.Secrets).
type SecretBroker interface {
	// GetSecret returns every field presently stored under path, or
	// (nil, nil) if path has nothing stored — spec.md §6's "map?" result,
	// not an error.
	GetSecret(ctx context.Context, path string) (map[string]string, error)
	PutSecret(ctx context.Context, path string, values map[string]string) error
	DeleteSecret(ctx context.Context, path string) error
}

// EnvSecretBroker implements SecretBroker against the process
// environment: a secret field named "key" under path "a/b" maps to the
// environment variable "A_B_KEY" (path segments and field name
// upper-cased and joined with "_"). It never talks to a network broker,
// so it can never report "unreachable" — callers needing a real Vault-
// backed broker substitute a different SecretBroker implementation
// without touching this interface.
type EnvSecretBroker struct{}

// NewEnvSecretBroker constructs the environment-backed default broker.
func NewEnvSecretBroker() *EnvSecretBroker {
	return &EnvSecretBroker{}
}

func envPrefix(path string) string {
	return strings.ToUpper(strings.ReplaceAll(path, "/", "_")) + "_"
}

// GetSecret returns every environment variable presently set under
// path's prefix, keyed by the trailing field name, lower-cased.
func (b *EnvSecretBroker) GetSecret(_ context.Context, path string) (map[string]string, error) {
	prefix := envPrefix(path)
	values := make(map[string]string)
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(name, prefix))
		values[field] = value
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// PutSecret sets one process environment variable per field in values.
// This affects only the current process; the environment-backed broker
// has no durable store of its own.
func (b *EnvSecretBroker) PutSecret(_ context.Context, path string, values map[string]string) error {
	prefix := envPrefix(path)
	for field, value := range values {
		name := prefix + strings.ToUpper(field)
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("config: set secret %s: %w", name, err)
		}
	}
	return nil
}

// DeleteSecret unsets every environment variable currently present under
// path's prefix.
func (b *EnvSecretBroker) DeleteSecret(ctx context.Context, path string) error {
	values, err := b.GetSecret(ctx, path)
	if err != nil {
		return err
	}
	prefix := envPrefix(path)
	for field := range values {
		name := prefix + strings.ToUpper(field)
		if err := os.Unsetenv(name); err != nil {
			return fmt.Errorf("config: delete secret %s: %w", name, err)
		}
	}
	return nil
}
