package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/altos-data/chmig/common/db"
	"github.com/altos-data/chmig/common/idgen"
	"github.com/altos-data/chmig/common/models"
)

// HistoryQueryError reports a failed read against the audit log. It is
// degraded rather than fatal: callers treat affected changes as pending
// instead of dropping them.
type HistoryQueryError struct {
	Err error
}

func (e *HistoryQueryError) Error() string {
	return fmt.Sprintf("history query failed: %v", e.Err)
}

func (e *HistoryQueryError) Unwrap() error { return e.Err }

// HistoryRepository handles the durable audit log of apply attempts, stored
// in ClickHouse alongside the schema it tracks.
type HistoryRepository struct {
	db    *db.ClickHouse
	table string
	ids   *idgen.Generator
}

// NewHistoryRepository creates a new history repository over the given state
// table.
func NewHistoryRepository(database *db.ClickHouse, table string, ids *idgen.Generator) *HistoryRepository {
	return &HistoryRepository{db: database, table: table, ids: ids}
}

// EnsureSchema creates the state table if it does not exist. Idempotent.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UInt64,
			change_id String,
			changelog_path String,
			type String,
			file String,
			description String,
			started_at DateTime64(3),
			finished_at DateTime64(3),
			status String,
			depends_on String,
			error_message String
		) ENGINE = MergeTree()
		ORDER BY (started_at, id)
	`, r.table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create state table %s: %w", r.table, err)
	}
	return nil
}

// LogStart inserts a pending attempt row for the change before any side
// effect is attempted. Returns the synthetic row id.
func (r *HistoryRepository) LogStart(ctx context.Context, change *models.Change) (int64, error) {
	snapshot, err := change.DependsOnJSON()
	if err != nil {
		return 0, err
	}

	id := r.ids.Next()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, change_id, changelog_path, type, file, description, started_at, status, depends_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table)

	_, err = r.db.ExecContext(
		ctx,
		query,
		uint64(id),
		change.ChangeID,
		change.ChangelogPath,
		string(change.Kind),
		change.ScriptPath,
		change.Description,
		time.Now().UTC(),
		string(models.StatusPending),
		snapshot,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log start of change %s: %w", change.Identity(), err)
	}

	return id, nil
}

// MarkStatus transitions the attempt rows matching the change's identity to a
// terminal status, recording the finish time and any error text.
func (r *HistoryRepository) MarkStatus(ctx context.Context, identity models.Identity, status models.AttemptStatus, errorMessage string) error {
	query := fmt.Sprintf(`
		ALTER TABLE %s UPDATE
			status = ?,
			finished_at = ?,
			error_message = ?
		WHERE change_id = ? AND changelog_path = ? AND status = '%s'
	`, r.table, models.StatusPending)

	_, err := r.db.ExecContext(
		ctx,
		query,
		string(status),
		time.Now().UTC(),
		errorMessage,
		identity.ChangeID,
		identity.ChangelogPath,
	)
	if err != nil {
		return fmt.Errorf("failed to mark change %s as %s: %w", identity, status, err)
	}
	return nil
}

// AppliedIdentities returns, in one bulk query, the set of identities having
// at least one successful attempt on record.
func (r *HistoryRepository) AppliedIdentities(ctx context.Context) (map[models.Identity]struct{}, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT change_id, changelog_path
		FROM %s
		WHERE status = '%s'
	`, r.table, models.StatusSuccess)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &HistoryQueryError{Err: err}
	}
	defer rows.Close()

	applied := make(map[models.Identity]struct{})
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.ChangeID, &id.ChangelogPath); err != nil {
			return nil, &HistoryQueryError{Err: err}
		}
		applied[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &HistoryQueryError{Err: err}
	}

	return applied, nil
}

// AllAttempts returns every attempt on record, oldest first.
func (r *HistoryRepository) AllAttempts(ctx context.Context) ([]*models.AppliedRecord, error) {
	return r.queryAttempts(ctx, "1 = 1")
}

// AttemptsByChangelog returns every attempt recorded for one changelog file,
// oldest first.
func (r *HistoryRepository) AttemptsByChangelog(ctx context.Context, changelogPath string) ([]*models.AppliedRecord, error) {
	return r.queryAttempts(ctx, "changelog_path = ?", changelogPath)
}

// PendingAttempts returns attempts still marked pending, typically leftovers
// from a process killed mid-change.
func (r *HistoryRepository) PendingAttempts(ctx context.Context) ([]*models.AppliedRecord, error) {
	return r.queryAttempts(ctx, "status = ?", string(models.StatusPending))
}

// FailedAttempts returns every failed attempt on record.
func (r *HistoryRepository) FailedAttempts(ctx context.Context) ([]*models.AppliedRecord, error) {
	return r.queryAttempts(ctx, "status = ?", string(models.StatusFailed))
}

func (r *HistoryRepository) queryAttempts(ctx context.Context, where string, args ...any) ([]*models.AppliedRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, change_id, changelog_path, type, file, description,
		       started_at, finished_at, status, depends_on, error_message
		FROM %s
		WHERE %s
		ORDER BY started_at, id
	`, r.table, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &HistoryQueryError{Err: err}
	}
	defer rows.Close()

	var records []*models.AppliedRecord
	for rows.Next() {
		record := &models.AppliedRecord{}
		var rowID uint64
		var kind, status string
		if err := rows.Scan(
			&rowID,
			&record.ChangeID,
			&record.ChangelogPath,
			&kind,
			&record.ScriptPath,
			&record.Description,
			&record.StartedAt,
			&record.FinishedAt,
			&status,
			&record.DependsOnSnapshot,
			&record.ErrorMessage,
		); err != nil {
			return nil, &HistoryQueryError{Err: err}
		}
		record.ID = int64(rowID)
		record.Kind = models.ChangeKind(kind)
		record.Status = models.AttemptStatus(status)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &HistoryQueryError{Err: err}
	}

	return records, nil
}
