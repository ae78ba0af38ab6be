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

type AlertStore struct {
	db   *bun.DB
	repo repository.Repository[*alertRecord]
}

func NewAlertStore(db *bun.DB) (*AlertStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*alertRecord](db, alertHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid alert repository wiring: %w", err)
		}
	}
	return &AlertStore{
		db:   db,
		repo: repo,
	}, nil
}

// Reserve is an atomic insert-if-absent on (build_id, channel). The
// winner gets won=true and owns the send; a loser gets the existing row
// and won=false, never an error.
func (s *AlertStore) Reserve(ctx context.Context, buildID string, channel core.AlertChannel, message string) (core.AlertRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.AlertRecord{}, false, fmt.Errorf("sqlstore: alert store is not configured")
	}
	buildID = strings.TrimSpace(buildID)
	if buildID == "" || strings.TrimSpace(string(channel)) == "" {
		return core.AlertRecord{}, false, fmt.Errorf("sqlstore: build id and channel are required")
	}

	record := &alertRecord{
		ID:      uuid.NewString(),
		BuildID: buildID,
		Channel: string(channel),
		Status:  core.AlertStatusPending,
		Message: message,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.GetByBuild(ctx, buildID, channel)
			if getErr != nil {
				return core.AlertRecord{}, false, getErr
			}
			return existing, false, nil
		}
		return core.AlertRecord{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *AlertStore) RecordOutcome(ctx context.Context, recordID string, success bool, sendErr string, sentAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: alert store is not configured")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return fmt.Errorf("sqlstore: alert record id is required")
	}
	status := core.AlertStatusFailed
	if success {
		status = core.AlertStatusSent
	}
	result, err := s.db.NewUpdate().
		Model((*alertRecord)(nil)).
		Set("status = ?", status).
		Set("success = ?", success).
		Set("error = ?", sendErr).
		Set("sent_at = ?", sentAt.UTC()).
		Where("id = ?", recordID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: alert record %q not found", recordID)
	}
	return nil
}

func (s *AlertStore) GetByBuild(ctx context.Context, buildID string, channel core.AlertChannel) (core.AlertRecord, error) {
	if s == nil || s.db == nil {
		return core.AlertRecord{}, fmt.Errorf("sqlstore: alert store is not configured")
	}
	record := &alertRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.build_id = ?", strings.TrimSpace(buildID)).
		Where("?TableAlias.channel = ?", string(channel)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.AlertRecord{}, fmt.Errorf(
				"sqlstore: alert not found for build %q channel %q", buildID, channel)
		}
		return core.AlertRecord{}, err
	}
	return record.toDomain(), nil
}
