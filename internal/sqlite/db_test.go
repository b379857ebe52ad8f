package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"timetables",
		"week_history",
		"activity_log",
		"api_keys",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// The schema is idempotent.
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")

	_, err = db.Exec(`INSERT INTO week_history (timetable_id, week_start, record, overall_completion_rate, archived_at)
		VALUES ('missing', 0, '{}', 0, CURRENT_TIMESTAMP)`)
	require.Error(t, err, "history rows need a timetable")
}

// TestWeekHistoryAppendOnly verifies the triggers that freeze archived weeks
func TestWeekHistoryAppendOnly(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO timetables (id, user_id, name, current_week, default_activities, created_at, updated_at)
		 VALUES ('tt1', 'user1', 'Habits', '{}', '[]', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO week_history (timetable_id, week_start, record, overall_completion_rate, archived_at)
		 VALUES ('tt1', 1718000000000, '{}', 14.29, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE week_history SET overall_completion_rate = 100`)
	require.ErrorContains(t, err, "append-only")

	_, err = db.ExecContext(ctx, `DELETE FROM week_history`)
	require.ErrorContains(t, err, "append-only")

	var rate float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT overall_completion_rate FROM week_history`).Scan(&rate))
	require.Equal(t, 14.29, rate)
}

// TestTimetableNameUnique verifies (user_id, name) uniqueness
func TestTimetableNameUnique(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	insert := `INSERT INTO timetables (id, user_id, name, current_week, default_activities, created_at, updated_at)
		VALUES (?, ?, ?, '{}', '[]', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	_, err := db.ExecContext(ctx, insert, "tt1", "user1", "Habits")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "tt2", "user2", "Habits")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "tt3", "user1", "Habits")
	require.True(t, isUniqueViolation(err))
}
