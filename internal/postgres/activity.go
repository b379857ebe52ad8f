package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpggio/weekly/internal/domain/activity"
)

// ActivityRepository stores the audit log in Postgres.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Log inserts an entry and fills in its id.
func (r *ActivityRepository) Log(ctx context.Context, userID string, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var weekStart *time.Time
	if !entry.WeekStart.IsZero() {
		weekStart = &entry.WeekStart
	}

	const query = `INSERT INTO activity_log (user_id, timetable_id, client_session_id, activity_type,
            summary, details, week_start, version, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		userID,
		entry.TimetableID,
		entry.ClientSessionID,
		string(entry.ActivityType),
		entry.Summary,
		entry.Details,
		weekStart,
		entry.Version,
		createdAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	entry.UserID = userID
	entry.CreatedAt = createdAt
	return nil
}

// List returns matching entries, newest first.
func (r *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if opts.TimetableID != "" {
		add("timetable_id = $%d", opts.TimetableID)
	}
	if opts.ClientSessionID != nil {
		add("client_session_id = $%d", *opts.ClientSessionID)
	}
	if opts.ActivityType != nil {
		add("activity_type = $%d", string(*opts.ActivityType))
	}

	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	args = append(args, limit, max(opts.Offset, 0))
	query := fmt.Sprintf(`SELECT id, user_id, timetable_id, client_session_id, activity_type,
            summary, details, week_start, version, created_at
        FROM activity_log WHERE %s
        ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := []activity.ActivityEntry{}
	for rows.Next() {
		var (
			entry     activity.ActivityEntry
			kind      string
			weekStart *time.Time
		)
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.TimetableID, &entry.ClientSessionID, &kind,
			&entry.Summary, &entry.Details, &weekStart, &entry.Version, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entry.ActivityType = activity.ActivityType(kind)
		if weekStart != nil {
			entry.WeekStart = *weekStart
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
