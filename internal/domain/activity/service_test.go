package activity_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	userID := "user1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		TimetableID:  "tt1",
		ActivityType: activity.TypeCellToggled,
		Summary:      "toggled Read on Wednesday",
		Version:      1,
	}

	repo.On("Log", ctx, userID, entry).Return(nil)
	repo.On("List", ctx, userID, activity.ListActivityOptions{TimetableID: "tt1", Limit: 50}).Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, userID, entry))
	require.False(t, entry.CreatedAt.IsZero())
	require.Equal(t, userID, entry.UserID)

	_, err := svc.GetRecentActivity(ctx, userID, activity.ListActivityOptions{TimetableID: "tt1"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_ClientSessionFromContext(t *testing.T) {
	ctx := activity.WithClientSession(context.Background(), "phone-1")

	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, "user1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ClientSessionID != nil && *e.ClientSessionID == "phone-1"
	})).Return(nil)

	svc := activity.NewService(repo, nil)
	err := svc.LogActivity(ctx, "user1", &activity.ActivityEntry{
		TimetableID:  "tt1",
		ActivityType: activity.TypeNotesUpdated,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)

	require.ErrorIs(t, svc.LogActivity(ctx, "user1", nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(ctx, "user1", &activity.ActivityEntry{TimetableID: "tt1"}), activity.ErrInvalidInput)

	_, err := svc.GetRecentActivity(ctx, "user1", activity.ListActivityOptions{})
	require.ErrorIs(t, err, activity.ErrInvalidInput)
}

func TestActivityService_LogsStoreFailure(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("disk full")

	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, "user1", mock.Anything).Return(storeErr)

	var buf bytes.Buffer
	svc := activity.NewService(repo, slog.New(slog.NewTextHandler(&buf, nil)))
	err := svc.LogActivity(ctx, "user1", &activity.ActivityEntry{
		TimetableID:  "tt1",
		ActivityType: activity.TypeCellToggled,
	})
	require.ErrorIs(t, err, storeErr)

	logged := buf.String()
	require.Contains(t, logged, "failed to store activity entry")
	require.Contains(t, logged, "timetable_id=tt1")
	require.Contains(t, logged, "disk full")
}
