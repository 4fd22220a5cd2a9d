// Package dbtest starts a disposable Postgres for integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"storefront/internal/database"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:16-alpine"

// Start runs a migrated Postgres container. The returned stop func closes the
// pool and terminates the container.
func Start(ctx context.Context) (db *sql.DB, stop func(), err error) {
	defer func() {
		// testcontainers panics when no docker host can be resolved
		if r := recover(); r != nil {
			err = fmt.Errorf("dbtest: container provider unavailable: %v", r)
		}
	}()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dbtest: start postgres: %w", err)
	}
	terminate := func() { _ = ctr.Terminate(context.Background()) }

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("dbtest: connection string: %w", err)
	}
	db, err = database.NewPostgres(ctx, dsn)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		terminate()
		return nil, nil, err
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}, nil
}

// Reset empties every table so each test starts from a clean slate.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "TRUNCATE orders, cart_items, products"); err != nil {
		t.Fatalf("dbtest: reset: %v", err)
	}
}

// SeedProduct inserts or replaces a catalog row.
func SeedProduct(t *testing.T, db *sql.DB, id, name string, price, discount int64) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO products (id, name, brand, image, price, discount)
		VALUES ($1, $2, 'Acme', '', $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, discount = EXCLUDED.discount`,
		id, name, price, discount,
	)
	if err != nil {
		t.Fatalf("dbtest: seed product %s: %v", id, err)
	}
}
