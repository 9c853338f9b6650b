// Package postgres provides PostgreSQL implementations of domain service interfaces.
package postgres

import (
	"github.com/fernwick/trapline"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the database connection pool and exposes domain services.
type DB struct {
	pool *pgxpool.Pool

	// Domain services (initialized in NewDB)
	SessionService trapline.SessionService
	RecordService  trapline.RecordService
	StationService trapline.StationService
}

// NewDB creates a new database wrapper with all services initialized.
func NewDB(pool *pgxpool.Pool) *DB {
	db := &DB{pool: pool}

	// Initialize services with reference back to DB. The record service
	// shares the session service's transition helpers so the counter
	// invariant is enforced in one place.
	sessions := &SessionService{db: db}
	db.SessionService = sessions
	db.RecordService = &RecordService{db: db, sessions: sessions}
	db.StationService = &StationService{db: db}

	return db
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer using service methods.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}
