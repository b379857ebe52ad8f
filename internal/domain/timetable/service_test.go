package timetable_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
	"github.com/rpggio/weekly/internal/repository"
	"github.com/rpggio/weekly/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memRepo is an in-memory timetable.Repository with the same save semantics
// as the sql stores.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]timetable.Timetable
	history   map[string][]week.Record
	saves     int
	failSaves error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]timetable.Timetable{}, history: map[string][]week.Record{}}
}

func (r *memRepo) Create(_ context.Context, userID string, t *timetable.Timetable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID && row.Name == t.Name {
			return repository.ErrDuplicate
		}
	}
	row := *t
	row.UserID = userID
	r.rows[t.ID] = row
	return nil
}

func (r *memRepo) Get(_ context.Context, userID, id string) (*timetable.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return nil, repository.ErrNotFound
	}
	row.CurrentWeek = row.CurrentWeek.Clone()
	return &row, nil
}

func (r *memRepo) GetActive(ctx context.Context, userID string) (*timetable.Timetable, error) {
	r.mu.Lock()
	var id string
	for _, row := range r.rows {
		if row.UserID == userID && row.IsActive {
			id = row.ID
		}
	}
	r.mu.Unlock()
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, userID, id)
}

func (r *memRepo) List(_ context.Context, userID string) ([]timetable.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []timetable.Summary
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row.Summarize())
		}
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, userID string, t *timetable.Timetable, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaves != nil {
		return r.failSaves
	}
	row, ok := r.rows[t.ID]
	if !ok || row.UserID != userID {
		return repository.ErrNotFound
	}
	if expectedVersion != timetable.AnyVersion && row.Version != expectedVersion {
		return repository.ErrConflict
	}
	r.history[t.ID] = append(r.history[t.ID], t.Archived...)
	t.Archived = nil
	t.HistoryCount = len(r.history[t.ID])
	t.Version = row.Version + 1
	next := *t
	next.CurrentWeek = t.CurrentWeek.Clone()
	r.rows[t.ID] = next
	r.saves++
	return nil
}

func (r *memRepo) History(_ context.Context, _ string, id string, opts timetable.HistoryOptions) ([]week.Record, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := slices.Clone(r.history[id])
	if opts.NewestFirst {
		slices.Reverse(all)
	}
	total := len(all)
	if opts.Offset >= total {
		return []week.Record{}, total, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, total, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []timetable.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...timetable.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []timetable.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []timetable.EventType
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService(repo timetable.Repository, clock *fakeClock, pub timetable.EventPublisher, mutate func(*timetable.Options)) *timetable.Service {
	opts := timetable.DefaultOptions()
	opts.Location = time.UTC
	opts.Clock = clock.Now
	if mutate != nil {
		mutate(&opts)
	}
	return timetable.NewService(repo, nil, pub, nil, nil, opts)
}

func createScenario(t *testing.T, svc *timetable.Service) *timetable.Timetable {
	t.Helper()
	tt, err := svc.Create(context.Background(), "user1", timetable.CreateRequest{
		Name:     "Habits",
		IsActive: true,
		Activities: []week.ActivityDefinition{
			{Name: "Read", Time: "7am", Category: "Learning"},
		},
	})
	require.NoError(t, err)
	return tt
}

func TestService_WeekLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := newTestService(repo, clock, pub, nil)

	tt := createScenario(t, svc)
	require.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), tt.CurrentWeek.WeekStartDate)
	require.Equal(t, time.Date(2024, 6, 16, 23, 59, 59, 999_000_000, time.UTC), tt.CurrentWeek.WeekEndDate)

	rec, err := svc.ToggleCell(ctx, "user1", tt.ID, "Read", 2)
	require.NoError(t, err)
	require.Equal(t, week.DailyStatus{false, false, true, false, false, false, false}, rec.Activities[0].DailyStatus)
	require.Equal(t, 14.29, rec.OverallCompletionRate)

	// Sunday: still the same week, nothing written.
	clock.Set(time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC))
	saves := repo.saves
	rec, err = svc.ActiveWeek(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.Equal(t, tt.CurrentWeek.WeekStartDate, rec.WeekStartDate)
	require.Equal(t, saves, repo.saves)

	// Monday after: the marked week is archived and a fresh week starts.
	clock.Set(time.Date(2024, 6, 17, 0, 0, 1, 0, time.UTC))
	res, err := svc.EvaluateRollover(ctx, "user1", "active")
	require.NoError(t, err)
	require.True(t, res.RolledOver)
	require.NotNil(t, res.Archived)
	require.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), res.Week.WeekStartDate)
	require.Equal(t, week.DailyStatus{}, res.Week.Activities[0].DailyStatus)

	page, err := svc.History(ctx, "user1", tt.ID, timetable.HistoryRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, rec.WeekStartDate, page.Weeks[0].WeekStartDate)
	require.True(t, page.Weeks[0].Activities[0].DailyStatus[2])
	require.Equal(t, 14.29, page.Weeks[0].OverallCompletionRate)

	// Retrying the rollover is harmless.
	res, err = svc.EvaluateRollover(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.False(t, res.RolledOver)
	page, err = svc.History(ctx, "user1", tt.ID, timetable.HistoryRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	require.Equal(t, []timetable.EventType{
		timetable.EventTimetableCreated,
		timetable.EventCellToggled,
		timetable.EventWeekRolledOver,
	}, pub.types())
}

func TestService_LazyRolloverOnToggle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, nil)
	tt := createScenario(t, svc)

	clock.Set(time.Date(2024, 6, 19, 8, 0, 0, 0, time.UTC))
	rec, err := svc.ToggleCell(ctx, "user1", tt.ID, "Read", 2)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), rec.WeekStartDate)
	require.True(t, rec.Activities[0].DailyStatus[2])

	got, err := svc.Get(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.HistoryCount)
}

func TestService_RolloverOnReadDisabled(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, func(o *timetable.Options) { o.RolloverOnRead = false })
	tt := createScenario(t, svc)

	clock.Set(time.Date(2024, 6, 19, 8, 0, 0, 0, time.UTC))
	rec, err := svc.ActiveWeek(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), rec.WeekStartDate)

	res, err := svc.EvaluateRollover(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.True(t, res.RolledOver)
}

func TestService_TogglePreconditions(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, nil)
	tt := createScenario(t, svc)
	saves := repo.saves

	_, err := svc.ToggleCell(ctx, "user1", tt.ID, "Read", 7)
	require.ErrorIs(t, err, week.ErrDayOutOfRange)

	_, err = svc.ToggleCell(ctx, "user1", tt.ID, "Swim", 0)
	require.ErrorIs(t, err, week.ErrUnknownActivity)
	require.ErrorIs(t, err, week.ErrInvalidArgument)

	_, err = svc.ToggleCell(ctx, "user1", "missing", "Read", 0)
	require.ErrorIs(t, err, timetable.ErrTimetableNotFound)

	_, err = svc.ToggleCell(ctx, "someone-else", tt.ID, "Read", 0)
	require.ErrorIs(t, err, timetable.ErrTimetableNotFound)

	require.Equal(t, saves, repo.saves)
}

func TestService_NoActiveTimetable(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TimetableRepository{}
	repo.On("GetActive", ctx, "user1").Return(nil, repository.ErrNotFound)

	svc := newTestService(repo, &fakeClock{now: time.Now()}, nil, nil)
	_, err := svc.ActiveWeek(ctx, "user1", timetable.ActiveID)
	require.ErrorIs(t, err, timetable.ErrNoActiveTimetable)
	require.ErrorIs(t, err, week.ErrInvalidArgument)
	repo.AssertExpectations(t)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TimetableRepository{}
	svc := newTestService(repo, &fakeClock{now: time.Now()}, nil, nil)

	_, err := svc.Create(ctx, "user1", timetable.CreateRequest{Name: " "})
	require.ErrorIs(t, err, timetable.ErrInvalidInput)

	_, err = svc.Create(ctx, "user1", timetable.CreateRequest{
		Name:       "Habits",
		Activities: []week.ActivityDefinition{{Name: "Read"}, {Name: "Read"}},
	})
	require.ErrorIs(t, err, week.ErrDuplicateActivity)

	repo.On("Create", ctx, "user1", mock.Anything).Return(repository.ErrDuplicate)
	_, err = svc.Create(ctx, "user1", timetable.CreateRequest{Name: "Habits"})
	require.ErrorIs(t, err, timetable.ErrNameTaken)
}

func TestService_CompareAndSwapRetries(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	fresh := func(version int64) *timetable.Timetable {
		tt := scenarioTimetable()
		tt.Version = version
		return tt
	}

	repo := &mocks.TimetableRepository{}
	repo.On("Get", ctx, "user1", "tt1").Return(fresh(1), nil).Once()
	repo.On("Get", ctx, "user1", "tt1").Return(fresh(2), nil).Once()
	repo.On("Save", ctx, "user1", mock.Anything, int64(1)).Return(repository.ErrConflict).Once()
	repo.On("Save", ctx, "user1", mock.Anything, int64(2)).Return(nil).Once()

	svc := newTestService(repo, clock, nil, func(o *timetable.Options) {
		o.Concurrency = timetable.CompareAndSwap
		o.MaxRetries = 1
	})
	rec, err := svc.ToggleCell(ctx, "user1", "tt1", "read", 0)
	require.NoError(t, err)
	require.True(t, rec.Activities[0].DailyStatus[0])
	repo.AssertExpectations(t)
}

func TestService_CompareAndSwapGivesUp(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}

	repo := &mocks.TimetableRepository{}
	repo.On("Get", ctx, "user1", "tt1").Return(scenarioTimetable(), nil).Once()
	repo.On("Get", ctx, "user1", "tt1").Return(scenarioTimetable(), nil).Once()
	repo.On("Save", ctx, "user1", mock.Anything, int64(1)).Return(repository.ErrConflict).Twice()

	svc := newTestService(repo, clock, nil, func(o *timetable.Options) {
		o.Concurrency = timetable.CompareAndSwap
		o.MaxRetries = 1
	})
	_, err := svc.ToggleCell(ctx, "user1", "tt1", "Read", 0)
	require.ErrorIs(t, err, timetable.ErrConflict)
	repo.AssertExpectations(t)
}

func TestService_LastWriteWinsSavesUnconditionally(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}

	repo := &mocks.TimetableRepository{}
	repo.On("Get", ctx, "user1", "tt1").Return(scenarioTimetable(), nil).Once()
	repo.On("Save", ctx, "user1", mock.Anything, timetable.AnyVersion).Return(nil).Once()

	svc := newTestService(repo, clock, nil, nil)
	_, err := svc.ToggleCell(ctx, "user1", "tt1", "Read", 4)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_SaveFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, nil)
	tt := createScenario(t, svc)

	boom := errors.New("disk full")
	repo.failSaves = boom
	_, err := svc.ToggleCell(ctx, "user1", tt.ID, "Read", 1)
	require.ErrorIs(t, err, boom)

	repo.failSaves = nil
	rec, err := svc.ActiveWeek(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.False(t, rec.Activities[0].DailyStatus[1])
}

func TestService_ReplaceActivitiesLeavesWeeksAlone(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, nil)
	tt := createScenario(t, svc)

	defs, err := svc.ReplaceActivities(ctx, "user1", tt.ID, []week.ActivityDefinition{
		{Name: "Gym", Category: "Health"},
		{Name: "Journal"},
	})
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.NotEmpty(t, defs[0].ID)

	rec, err := svc.ActiveWeek(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.Len(t, rec.Activities, 1)
	require.Equal(t, "Read", rec.Activities[0].Activity.Name)

	clock.Set(time.Date(2024, 6, 18, 8, 0, 0, 0, time.UTC))
	rec, err = svc.ActiveWeek(ctx, "user1", tt.ID)
	require.NoError(t, err)
	require.Len(t, rec.Activities, 2)
	require.Equal(t, "Gym", rec.Activities[0].Activity.Name)

	_, err = svc.ReplaceActivities(ctx, "user1", tt.ID, []week.ActivityDefinition{{Name: ""}})
	require.ErrorIs(t, err, week.ErrEmptyActivityName)
}

func TestService_UpdateNotes(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(repo, clock, nil, nil)
	tt := createScenario(t, svc)

	rec, err := svc.UpdateNotes(ctx, "user1", tt.ID, "travelling thursday")
	require.NoError(t, err)
	require.Equal(t, "travelling thursday", rec.Notes)

	saves := repo.saves
	_, err = svc.UpdateNotes(ctx, "user1", tt.ID, "travelling thursday")
	require.NoError(t, err)
	require.Equal(t, saves, repo.saves)

	long := make([]rune, timetable.MaxNotesLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.UpdateNotes(ctx, "user1", tt.ID, string(long))
	require.ErrorIs(t, err, timetable.ErrInvalidInput)
}

func TestService_HistoryPaging(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TimetableRepository{}
	tt := scenarioTimetable()
	repo.On("Get", ctx, "user1", "tt1").Return(tt, nil)
	repo.On("History", ctx, "user1", "tt1", timetable.HistoryOptions{Offset: 5, Limit: 5, NewestFirst: false}).
		Return([]week.Record{}, 7, nil).Once()

	svc := newTestService(repo, &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}, nil, nil)
	page, err := svc.History(ctx, "user1", "tt1", timetable.HistoryRequest{Page: 2, PageSize: 5, Order: timetable.OldestFirst})
	require.NoError(t, err)
	require.Equal(t, 7, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, timetable.OldestFirst, page.Order)

	_, err = svc.History(ctx, "user1", "tt1", timetable.HistoryRequest{Order: "sideways"})
	require.ErrorIs(t, err, timetable.ErrInvalidInput)

	repo.On("History", ctx, "user1", "tt1", timetable.HistoryOptions{Offset: 0, Limit: 100, NewestFirst: true}).
		Return([]week.Record{}, 0, nil).Once()
	page, err = svc.History(ctx, "user1", "tt1", timetable.HistoryRequest{PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, 100, page.PageSize)
	repo.AssertExpectations(t)
}

func TestService_HistoryRejectsPageBeyondRange(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TimetableRepository{}
	svc := newTestService(repo, &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}, nil, nil)

	_, err := svc.History(ctx, "user1", "tt1", timetable.HistoryRequest{Page: math.MaxInt, PageSize: 10})
	require.ErrorIs(t, err, timetable.ErrInvalidInput)

	_, err = svc.History(ctx, "user1", "tt1", timetable.HistoryRequest{Page: math.MaxInt/10 + 2, PageSize: 10})
	require.ErrorIs(t, err, timetable.ErrInvalidInput)
	repo.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_StatsDelegates(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TimetableRepository{}
	tt := scenarioTimetable()
	history := []week.Record{week.New(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), time.UTC, tt.DefaultActivities)}
	repo.On("Get", ctx, "user1", "tt1").Return(tt, nil)
	repo.On("History", ctx, "user1", "tt1", timetable.HistoryOptions{}).Return(history, 1, nil)

	agg := &mocks.StatsAggregator{}
	agg.On("Summarize", history, tt.CurrentWeek).Return(stats.Summary{WeeksTracked: 1})

	opts := timetable.DefaultOptions()
	opts.Location = time.UTC
	opts.Clock = func() time.Time { return time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC) }
	svc := timetable.NewService(repo, nil, nil, agg, nil, opts)

	sum, err := svc.Stats(ctx, "user1", "tt1")
	require.NoError(t, err)
	require.Equal(t, 1, sum.WeeksTracked)
	agg.AssertExpectations(t)
}

func TestService_AuditLogCarriesClientSession(t *testing.T) {
	ctx := activity.WithClientSession(context.Background(), "laptop")
	clock := &fakeClock{now: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)}
	repo := newMemRepo()

	logger := &mocks.ActivityLogger{}
	logger.On("LogActivity", ctx, "user1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeTimetableCreated
	})).Return(nil).Once()
	logger.On("LogActivity", ctx, "user1", mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeCellToggled && e.Summary == "marked Read on Tuesday"
	})).Return(errors.New("log unavailable")).Once()

	pub := &mocks.EventPublisher{}
	pub.On("Publish", ctx, mock.MatchedBy(func(evs []timetable.Event) bool {
		return len(evs) == 1 && evs[0].ClientSessionID == "laptop"
	})).Return(nil)

	opts := timetable.DefaultOptions()
	opts.Location = time.UTC
	opts.Clock = clock.Now
	svc := timetable.NewService(repo, logger, pub, nil, nil, opts)

	tt, err := svc.Create(ctx, "user1", timetable.CreateRequest{
		Name:       "Habits",
		Activities: []week.ActivityDefinition{{Name: "Read"}},
	})
	require.NoError(t, err)

	// Audit failures never fail the committed mutation.
	_, err = svc.ToggleCell(ctx, "user1", tt.ID, "Read", 1)
	require.NoError(t, err)

	logger.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}
