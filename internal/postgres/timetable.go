package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/repository"
)

// TimetableRepository provides Postgres-backed persistence for timetables.
type TimetableRepository struct {
	pool *pgxpool.Pool
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(pool *pgxpool.Pool) *TimetableRepository {
	return &TimetableRepository{pool: pool}
}

const timetableColumns = `id, user_id, name, description, is_active, current_week,
        default_activities, history_count, version, created_at, updated_at`

// Create inserts a new timetable.
func (r *TimetableRepository) Create(ctx context.Context, userID string, t *timetable.Timetable) error {
	current, defs, err := encodeAggregate(t)
	if err != nil {
		return err
	}

	const query = `INSERT INTO timetables (` + timetableColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,$10)`
	_, err = r.pool.Exec(ctx, query,
		t.ID,
		userID,
		t.Name,
		t.Description,
		t.IsActive,
		current,
		defs,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("create timetable: %w", err)
	}
	t.UserID = userID
	t.HistoryCount = 0
	return nil
}

// Get retrieves a timetable by id.
func (r *TimetableRepository) Get(ctx context.Context, userID, id string) (*timetable.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE id=$1 AND user_id=$2`
	t, err := scanTimetable(r.pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get timetable: %w", err)
	}
	return t, nil
}

// GetActive retrieves the most recently updated active timetable of the user.
func (r *TimetableRepository) GetActive(ctx context.Context, userID string) (*timetable.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables
        WHERE user_id=$1 AND is_active ORDER BY updated_at DESC LIMIT 1`
	t, err := scanTimetable(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active timetable: %w", err)
	}
	return t, nil
}

// List returns summaries of the user's timetables, active ones first.
func (r *TimetableRepository) List(ctx context.Context, userID string) ([]timetable.Summary, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables
        WHERE user_id=$1 ORDER BY is_active DESC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	defer rows.Close()

	summaries := []timetable.Summary{}
	for rows.Next() {
		t, err := scanTimetable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timetable: %w", err)
		}
		summaries = append(summaries, t.Summarize())
	}
	return summaries, rows.Err()
}

// Save updates the aggregate and appends newly archived weeks inside a single
// transaction.
func (r *TimetableRepository) Save(ctx context.Context, userID string, t *timetable.Timetable, expectedVersion int64) (err error) {
	current, defs, err := encodeAggregate(t)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	const update = `UPDATE timetables
        SET name=$1, description=$2, is_active=$3, current_week=$4, default_activities=$5,
            version=version+1, updated_at=$6
        WHERE id=$7 AND user_id=$8 AND ($9::bigint < 0 OR version=$9::bigint)
        RETURNING version`
	var version int64
	err = tx.QueryRow(ctx, update,
		t.Name, t.Description, t.IsActive, current, defs, now, t.ID, userID, expectedVersion,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM timetables WHERE id=$1 AND user_id=$2)`, t.ID, userID).Scan(&exists); err != nil {
			return fmt.Errorf("check timetable: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save timetable: %w", err)
	}

	const insert = `INSERT INTO week_history (timetable_id, week_start, record, overall_completion_rate, archived_at)
        VALUES ($1,$2,$3,$4,$5) ON CONFLICT (timetable_id, week_start) DO NOTHING`
	for _, rec := range t.Archived {
		body, encErr := week.Encode(rec)
		if encErr != nil {
			return fmt.Errorf("encode archived week: %w", encErr)
		}
		if _, err = tx.Exec(ctx, insert, t.ID, rec.WeekStartDate.UnixMilli(), body, rec.OverallCompletionRate, now); err != nil {
			return fmt.Errorf("archive week: %w", err)
		}
	}

	var historyCount int
	const count = `UPDATE timetables
        SET history_count=(SELECT COUNT(*) FROM week_history WHERE timetable_id=$1)
        WHERE id=$1 RETURNING history_count`
	if err = tx.QueryRow(ctx, count, t.ID).Scan(&historyCount); err != nil {
		return fmt.Errorf("update history count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	t.Version = version
	t.HistoryCount = historyCount
	t.UpdatedAt = now
	t.Archived = nil
	return nil
}

// History returns archived weeks ordered by week start.
func (r *TimetableRepository) History(ctx context.Context, userID, id string, opts timetable.HistoryOptions) ([]week.Record, int, error) {
	var total int
	const countQuery = `SELECT COUNT(*) FROM week_history h JOIN timetables t ON t.id=h.timetable_id
        WHERE h.timetable_id=$1 AND t.user_id=$2`
	if err := r.pool.QueryRow(ctx, countQuery, id, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	order := "ASC"
	if opts.NewestFirst {
		order = "DESC"
	}
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	query := `SELECT h.record FROM week_history h JOIN timetables t ON t.id=h.timetable_id
        WHERE h.timetable_id=$1 AND t.user_id=$2
        ORDER BY h.week_start ` + order + ` LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, id, userID, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	weeks := []week.Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		rec, err := week.Decode(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("decode archived week: %w", err)
		}
		weeks = append(weeks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return weeks, total, nil
}

func scanTimetable(row pgx.Row) (*timetable.Timetable, error) {
	var (
		t       timetable.Timetable
		current []byte
		defs    []byte
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Description, &t.IsActive, &current,
		&defs, &t.HistoryCount, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec, err := week.Decode(current)
	if err != nil {
		return nil, fmt.Errorf("decode current week: %w", err)
	}
	t.CurrentWeek = rec
	if err := json.Unmarshal(defs, &t.DefaultActivities); err != nil {
		return nil, fmt.Errorf("decode default activities: %w", err)
	}
	return &t, nil
}

func encodeAggregate(t *timetable.Timetable) (current, defs []byte, err error) {
	current, err = week.Encode(t.CurrentWeek)
	if err != nil {
		return nil, nil, fmt.Errorf("encode current week: %w", err)
	}
	list := t.DefaultActivities
	if list == nil {
		list = []week.ActivityDefinition{}
	}
	if defs, err = json.Marshal(list); err != nil {
		return nil, nil, fmt.Errorf("encode default activities: %w", err)
	}
	return current, defs, nil
}
