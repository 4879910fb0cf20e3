package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/postgres"
)

// PostgresStore persists checkpoints in a single table. The upsert keeps
// GREATEST of the existing and incoming watermark, which makes Commit both
// atomic per key and monotonic without any application-side locking.
type PostgresStore struct {
	client *postgres.Client
}

// NewPostgresStore creates a PostgresStore on the given client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.client.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS extraction_checkpoints (
			input_id          TEXT        NOT NULL,
			report_type       TEXT        NOT NULL,
			last_datetime     TIMESTAMPTZ NOT NULL,
			processed_records INTEGER     NOT NULL DEFAULT 0,
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (input_id, report_type)
		)`)
	if err != nil {
		return fmt.Errorf("creating checkpoint table: %w", err)
	}
	return nil
}

// Get returns the checkpoint for the key, or nil when none has been
// committed yet.
func (s *PostgresStore) Get(ctx context.Context, inputID string, report schema.ReportType) (*Checkpoint, error) {
	row := s.client.DB.QueryRowContext(ctx, `
		SELECT last_datetime, processed_records, updated_at
		FROM extraction_checkpoints
		WHERE input_id = $1 AND report_type = $2`,
		inputID, string(report),
	)
	cp := Checkpoint{InputID: inputID, ReportType: report}
	err := row.Scan(&cp.LastDatetime, &cp.ProcessedRecords, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s/%s: %w", inputID, report, err)
	}
	cp.LastDatetime = cp.LastDatetime.UTC()
	return &cp, nil
}

// Commit upserts the checkpoint, advancing last_datetime only forwards.
func (s *PostgresStore) Commit(ctx context.Context, inputID string, report schema.ReportType, lastDatetime time.Time, processed int) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO extraction_checkpoints (input_id, report_type, last_datetime, processed_records, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (input_id, report_type) DO UPDATE SET
			last_datetime     = GREATEST(extraction_checkpoints.last_datetime, EXCLUDED.last_datetime),
			processed_records = EXCLUDED.processed_records,
			updated_at        = NOW()`,
		inputID, string(report), lastDatetime.UTC(), processed,
	)
	if err != nil {
		return fmt.Errorf("%w: %s/%s: %v", perrors.ErrCheckpointCommit, inputID, report, err)
	}
	return nil
}
