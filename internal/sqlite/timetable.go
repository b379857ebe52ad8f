package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/repository"
)

// TimetableRepository implements timetable.Repository for SQLite
type TimetableRepository struct {
	db *DB
}

// NewTimetableRepository creates a new TimetableRepository
func NewTimetableRepository(db *DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `
	id, user_id, name, description, is_active, current_week,
	default_activities, history_count, version, created_at, updated_at
`

// Create inserts a new timetable
func (r *TimetableRepository) Create(ctx context.Context, userID string, t *timetable.Timetable) error {
	current, defs, err := encodeAggregate(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO timetables (` + timetableColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		userID,
		t.Name,
		t.Description,
		t.IsActive,
		string(current),
		string(defs),
		0,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create timetable: %w", err)
	}

	t.UserID = userID
	t.HistoryCount = 0
	return nil
}

// Get retrieves a timetable by ID
func (r *TimetableRepository) Get(ctx context.Context, userID, id string) (*timetable.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = ? AND user_id = ?`
	t, err := scanTimetable(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timetable: %w", err)
	}
	return t, nil
}

// GetActive retrieves the user's active timetable. If several are flagged
// active the most recently updated one wins.
func (r *TimetableRepository) GetActive(ctx context.Context, userID string) (*timetable.Timetable, error) {
	query := `
		SELECT ` + timetableColumns + `
		FROM timetables
		WHERE user_id = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	t, err := scanTimetable(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active timetable: %w", err)
	}
	return t, nil
}

// List returns all timetables of a user with summary information
func (r *TimetableRepository) List(ctx context.Context, userID string) ([]timetable.Summary, error) {
	query := `
		SELECT ` + timetableColumns + `
		FROM timetables
		WHERE user_id = ?
		ORDER BY is_active DESC, created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timetables: %w", err)
	}
	defer rows.Close()

	summaries := []timetable.Summary{}
	for rows.Next() {
		t, err := scanTimetable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timetable: %w", err)
		}
		summaries = append(summaries, t.Summarize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timetable rows: %w", err)
	}
	return summaries, nil
}

// Save writes the aggregate and appends its newly archived weeks in one
// transaction.
func (r *TimetableRepository) Save(ctx context.Context, userID string, t *timetable.Timetable, expectedVersion int64) error {
	current, defs, err := encodeAggregate(t)
	if err != nil {
		return err
	}
	archived := make([][]byte, len(t.Archived))
	for i, rec := range t.Archived {
		if archived[i], err = week.Encode(rec); err != nil {
			return fmt.Errorf("encoding archived week: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	query := `
		UPDATE timetables
		SET name = ?, description = ?, is_active = ?, current_week = ?,
		    default_activities = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND user_id = ? AND (? < 0 OR version = ?)
		RETURNING version
	`
	var version int64
	err = tx.QueryRowContext(ctx, query,
		t.Name,
		t.Description,
		t.IsActive,
		string(current),
		string(defs),
		now,
		t.ID,
		userID,
		expectedVersion,
		expectedVersion,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM timetables WHERE id = ? AND user_id = ?)`
		if err := tx.QueryRowContext(ctx, checkQuery, t.ID, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check timetable existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save timetable: %w", err)
	}

	// A racing writer may already have archived the same week.
	insertQuery := `
		INSERT INTO week_history (timetable_id, week_start, record, overall_completion_rate, archived_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (timetable_id, week_start) DO NOTHING
	`
	for i, rec := range t.Archived {
		if _, err := tx.ExecContext(ctx, insertQuery,
			t.ID,
			rec.WeekStartDate.UnixMilli(),
			string(archived[i]),
			rec.OverallCompletionRate,
			now,
		); err != nil {
			return fmt.Errorf("failed to archive week: %w", err)
		}
	}

	var historyCount int
	countQuery := `
		UPDATE timetables
		SET history_count = (SELECT COUNT(*) FROM week_history WHERE timetable_id = ?)
		WHERE id = ?
		RETURNING history_count
	`
	if err := tx.QueryRowContext(ctx, countQuery, t.ID, t.ID).Scan(&historyCount); err != nil {
		return fmt.Errorf("failed to update history count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.Version = version
	t.HistoryCount = historyCount
	t.UpdatedAt = now
	t.Archived = nil
	return nil
}

// History returns archived weeks ordered by week start
func (r *TimetableRepository) History(ctx context.Context, userID, id string, opts timetable.HistoryOptions) ([]week.Record, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM week_history h
		JOIN timetables t ON t.id = h.timetable_id
		WHERE h.timetable_id = ? AND t.user_id = ?
	`
	if err := r.db.QueryRowContext(ctx, countQuery, id, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	order := "ASC"
	if opts.NewestFirst {
		order = "DESC"
	}
	limit := -1
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	query := `
		SELECT h.record
		FROM week_history h
		JOIN timetables t ON t.id = h.timetable_id
		WHERE h.timetable_id = ? AND t.user_id = ?
		ORDER BY h.week_start ` + order + `
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, id, userID, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	weeks := []week.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec, err := week.Decode([]byte(raw))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode archived week: %w", err)
		}
		weeks = append(weeks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating history rows: %w", err)
	}
	return weeks, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimetable(row scanner) (*timetable.Timetable, error) {
	var (
		t       timetable.Timetable
		current string
		defs    string
	)
	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Name,
		&t.Description,
		&t.IsActive,
		&current,
		&defs,
		&t.HistoryCount,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeAggregate(&t, []byte(current), []byte(defs)); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeAggregate(t *timetable.Timetable) (current, defs []byte, err error) {
	current, err = week.Encode(t.CurrentWeek)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding current week: %w", err)
	}
	list := t.DefaultActivities
	if list == nil {
		list = []week.ActivityDefinition{}
	}
	defs, err = json.Marshal(list)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding default activities: %w", err)
	}
	return current, defs, nil
}

func decodeAggregate(t *timetable.Timetable, current, defs []byte) error {
	rec, err := week.Decode(current)
	if err != nil {
		return fmt.Errorf("decoding current week: %w", err)
	}
	t.CurrentWeek = rec
	if err := json.Unmarshal(defs, &t.DefaultActivities); err != nil {
		return fmt.Errorf("decoding default activities: %w", err)
	}
	return nil
}
