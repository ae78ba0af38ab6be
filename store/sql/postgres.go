package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// NewPostgresDB opens a pq-backed bun handle for production wiring. The
// connection is lazy; callers ping or migrate to surface connectivity
// problems.
func NewPostgresDB(dsn string) (*bun.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: parse postgres dsn: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// NewPostgresFactory opens a postgres handle and builds the repository
// factory over it in one step.
func NewPostgresFactory(dsn string) (*RepositoryFactory, error) {
	db, err := NewPostgresDB(dsn)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db)
}
