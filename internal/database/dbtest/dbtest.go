// Package dbtest starts a throwaway Postgres container for tests that need
// the real SQL behind the stores.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/config"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/database"
)

const postgresImage = "postgres:16-alpine"

// Open starts Postgres, applies every migration and returns a connection.
// The container is terminated when the test finishes. The test is skipped
// under -short or when no container runtime is reachable.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{string(port)},
			Env: map[string]string{
				"POSTGRES_USER":     "reputation",
				"POSTGRES_PASSWORD": "reputation",
				"POSTGRES_DB":       "reputation_test",
			},
			// The entrypoint restarts the server once after init.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort(port),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	mapped, err := ctr.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("postgres mapped port: %v", err)
	}

	db, err := database.Connect(config.DatabaseConfig{
		Host:     host,
		Port:     mapped.Port(),
		User:     "reputation",
		Password: "reputation",
		Name:     "reputation_test",
		SSLMode:  "disable",
		MaxOpen:  10,
		MaxIdle:  5,
	})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Exec runs setup statements and fails the test on the first error.
func Exec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
}
