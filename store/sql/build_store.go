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

type BuildStore struct {
	db   *bun.DB
	repo repository.Repository[*buildRecord]
}

func NewBuildStore(db *bun.DB) (*BuildStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*buildRecord](db, buildHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid build repository wiring: %w", err)
		}
	}
	return &BuildStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *BuildStore) GetByKey(ctx context.Context, providerID, externalID string) (core.Build, error) {
	if s == nil || s.db == nil {
		return core.Build{}, fmt.Errorf("sqlstore: build store is not configured")
	}
	record := &buildRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.external_id = ?", strings.TrimSpace(externalID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Build{}, fmt.Errorf("%w: provider %q external id %q",
				core.ErrBuildNotFound, providerID, externalID)
		}
		return core.Build{}, err
	}
	return record.toDomain(), nil
}

func (s *BuildStore) Get(ctx context.Context, id string) (core.Build, error) {
	if s == nil || s.db == nil {
		return core.Build{}, fmt.Errorf("sqlstore: build store is not configured")
	}
	record := &buildRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Build{}, fmt.Errorf("%w: id %q", core.ErrBuildNotFound, id)
		}
		return core.Build{}, err
	}
	return record.toDomain(), nil
}

// Insert persists a new build row. A duplicate (provider_id,
// external_id) surfaces as a conflict error so the reconciler can
// resolve the race as an update.
func (s *BuildStore) Insert(ctx context.Context, build core.Build) (core.Build, error) {
	if s == nil || s.db == nil {
		return core.Build{}, fmt.Errorf("sqlstore: build store is not configured")
	}
	build.ProviderID = strings.TrimSpace(build.ProviderID)
	build.ExternalID = strings.TrimSpace(build.ExternalID)
	if build.ProviderID == "" || build.ExternalID == "" {
		return core.Build{}, fmt.Errorf("sqlstore: provider id and external id are required")
	}
	if strings.TrimSpace(build.ID) == "" {
		build.ID = uuid.NewString()
	}

	record := newBuildRecord(build, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Build{}, core.NewConflictError(
				fmt.Sprintf("sqlstore: build (%s, %s) already exists", build.ProviderID, build.ExternalID), err)
		}
		return core.Build{}, err
	}
	return record.toDomain(), nil
}

func (s *BuildStore) Update(ctx context.Context, build core.Build) (core.Build, error) {
	if s == nil || s.db == nil {
		return core.Build{}, fmt.Errorf("sqlstore: build store is not configured")
	}
	build.ID = strings.TrimSpace(build.ID)
	if build.ID == "" {
		return core.Build{}, fmt.Errorf("sqlstore: build id is required")
	}
	if build.UpdatedAt.IsZero() {
		build.UpdatedAt = time.Now().UTC()
	}

	record := newBuildRecord(build, build.UpdatedAt)
	result, err := s.db.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return core.Build{}, err
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return core.Build{}, fmt.Errorf("%w: id %q", core.ErrBuildNotFound, build.ID)
	}
	return record.toDomain(), nil
}

// ListStartedWithin returns builds whose started_at lies inside
// [from, to], ordered oldest first. Builds without a start time never
// match a window.
func (s *BuildStore) ListStartedWithin(ctx context.Context, from, to time.Time) ([]core.Build, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: build store is not configured")
	}
	var records []buildRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.started_at IS NOT NULL").
		Where("?TableAlias.started_at >= ?", from.UTC()).
		Where("?TableAlias.started_at <= ?", to.UTC()).
		Order("started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	builds := make([]core.Build, 0, len(records))
	for i := range records {
		builds = append(builds, records[i].toDomain())
	}
	return builds, nil
}

func (s *BuildStore) List(ctx context.Context, limit, offset int) ([]core.Build, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: build store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var records []buildRecord
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	builds := make([]core.Build, 0, len(records))
	for i := range records {
		builds = append(builds, records[i].toDomain())
	}
	return builds, nil
}
