// Package repository implements PostgreSQL persistence for checkship using
// pgx. Each aggregate gets its own repository over a shared pool; pgx errors
// are mapped to the domain error taxonomy at this boundary.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository bundles the per-aggregate repositories over one pgx pool.
type Repository struct {
	pool *pgxpool.Pool

	Templates   *TemplateRepo
	Inspections *InspectionRepo
	Vehicles    *VehicleRepo
	Users       *UserRepo
}

// New creates the repository set over an established pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:        pool,
		Templates:   &TemplateRepo{pool: pool},
		Inspections: &InspectionRepo{pool: pool},
		Vehicles:    &VehicleRepo{pool: pool},
		Users:       &UserRepo{pool: pool},
	}
}

// Connect opens a pgx pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
