package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/redis"
)

func start(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, mapped.Port()
}

// PostgresDB starts PostgreSQL in a container and returns a migrated catalog.
func PostgresDB(t *testing.T) database.DB {
	t.Helper()

	host, port := start(t, testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fern",
			"POSTGRES_PASSWORD": "fern",
			"POSTGRES_DB":       "fern",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	conn, err := database.Open(context.Background(), database.ConnectionConfig{
		Driver:   database.DriverPostgres,
		Host:     host,
		Port:     port,
		User:     "fern",
		Password: "fern",
		Name:     "fern",
		SSLMode:  "disable",
	}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	Migrate(t, conn)
	return conn
}

// RedisClient starts Redis in a container.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()

	host, port := start(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}, "6379")

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	client, err := redis.NewClient(context.Background(), redis.Config{Host: host, Port: p}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
