// Package database provides a shared Postgres test fixture for
// repository-level tests across the module.
package database

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/itechmeat/jeex/pkg/database"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to an external PostgreSQL
// service container. In local dev: spins up a pgvector-enabled
// testcontainer. The container/connection is automatically cleaned up
// when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	ctx := context.Background()

	ciDatabaseURL := os.Getenv("CI_DATABASE_URL")

	cfg := database.Config{
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}

	if ciDatabaseURL != "" {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		u, err := url.Parse(ciDatabaseURL)
		require.NoError(t, err)
		cfg.Host = u.Hostname()
		cfg.Port = 5432
		if p := u.Port(); p != "" {
			cfg.Port, err = strconv.Atoi(p)
			require.NoError(t, err)
		}
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
		cfg.Database = strings.TrimPrefix(u.Path, "/")
		client, err := database.NewClient(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	t.Log("using testcontainers for pgvector-enabled PostgreSQL")
	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg.Host = host
	cfg.Port = port.Int()
	cfg.User = "test"
	cfg.Password = "test"
	cfg.Database = "test"

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}
