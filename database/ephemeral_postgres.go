package database

import (
	"context"
	"fmt"

	"github.com/stapelberg/postgrestest"
)

// EphemeralPostgres wraps a throwaway PostgreSQL server for development runs.
// The server and its data directory are removed on Cleanup.
type EphemeralPostgres struct {
	DSN    string
	server *postgrestest.Server
}

// SetupEphemeralPostgres starts an ephemeral PostgreSQL instance and creates
// a fresh database for the application. The caller connects using DSN.
func SetupEphemeralPostgres() (*EphemeralPostgres, error) {
	Logger.Info("Starting ephemeral PostgreSQL server...")

	ctx := context.Background()

	// Uses a temporary directory by default for simplicity
	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}

	Logger.Info("Ephemeral PostgreSQL server started", "dsn", pgt.DefaultDatabase())

	// Create a new database for the application
	rasterDSN, err := pgt.CreateDatabase(ctx)
	if err != nil {
		pgt.Cleanup()
		return nil, fmt.Errorf("failed to create pdfraster database: %w", err)
	}

	Logger.Info("Created ephemeral database", "dsn", rasterDSN)

	return &EphemeralPostgres{
		DSN:    rasterDSN,
		server: pgt,
	}, nil
}

// Cleanup stops the server and removes its data directory
func (e *EphemeralPostgres) Cleanup() {
	if e.server != nil {
		Logger.Info("Cleaning up ephemeral PostgreSQL server...")
		e.server.Cleanup()
		Logger.Info("Ephemeral PostgreSQL server cleaned up")
	}
}
