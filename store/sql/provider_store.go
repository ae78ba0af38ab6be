// Package sqlstore implements the persistence contracts on bun. The
// uniqueness guarantees the reconciler and alert gate rely on live in
// the table constraints here, not in application locks.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-buildhealth/core"
)

type ProviderStore struct {
	db   *bun.DB
	repo repository.Repository[*providerRecord]
}

func NewProviderStore(db *bun.DB) (*ProviderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*providerRecord](db, providerHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid provider repository wiring: %w", err)
		}
	}
	return &ProviderStore{
		db:   db,
		repo: repo,
	}, nil
}

// GetOrCreate returns the provider row for (kind, name), inserting it on
// first sight. Two workers racing the first insert both get the same
// row: the loser's unique violation resolves into a re-read.
func (s *ProviderStore) GetOrCreate(ctx context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	if s == nil || s.db == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	if err := kind.Validate(); err != nil {
		return core.Provider{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Provider{}, fmt.Errorf("sqlstore: provider name is required")
	}

	if provider, err := s.getByKindName(ctx, kind, name); err == nil {
		return provider, nil
	} else if err != sql.ErrNoRows {
		return core.Provider{}, err
	}

	record := &providerRecord{
		ID:        uuid.NewString(),
		Kind:      string(kind),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			provider, getErr := s.getByKindName(ctx, kind, name)
			if getErr != nil {
				return core.Provider{}, getErr
			}
			return provider, nil
		}
		return core.Provider{}, err
	}
	return record.toDomain(), nil
}

func (s *ProviderStore) Get(ctx context.Context, id string) (core.Provider, error) {
	if s == nil || s.db == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: provider store is not configured")
	}
	record := &providerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Provider{}, fmt.Errorf("%w: id %q", core.ErrProviderNotFound, id)
		}
		return core.Provider{}, err
	}
	return record.toDomain(), nil
}

func (s *ProviderStore) getByKindName(ctx context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	record := &providerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.kind = ?", string(kind)).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Provider{}, err
	}
	return record.toDomain(), nil
}
