package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

func drinkWater() model.HabitInput {
	return model.HabitInput{
		Name:            "Drink Water",
		Description:     "8 glasses a day",
		Category:        model.CategoryDaily,
		ReminderEnabled: true,
		ReminderTime:    &model.ClockTime{Hour: 9},
	}
}

func TestCreateThenListRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	created, err := store.Create(ctx, "owner-1", drinkWater())
	require.NoError(t, err)
	assert.Equal(t, "habit-1", created.ID)
	assert.Equal(t, testNow, created.CreatedAt)
	assert.Equal(t, 0, created.Streak)
	assert.Empty(t, created.CompletedDates)

	habits, err := store.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, habits, 1)
	got := habits[0]
	assert.Equal(t, "Drink Water", got.Name)
	assert.Equal(t, "8 glasses a day", got.Description)
	assert.Equal(t, model.CategoryDaily, got.Category)
	assert.True(t, got.ReminderEnabled)
	assert.Equal(t, "09:00", got.ReminderTime.String())
	assert.Nil(t, got.ReminderWeekday)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, created, got)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	for _, name := range []string{"Zebra", "Apple", "Mango"} {
		_, err := store.Create(ctx, "o", model.HabitInput{Name: name})
		require.NoError(t, err)
	}

	habits, err := store.List(ctx, "o")
	require.NoError(t, err)
	require.Len(t, habits, 3)
	assert.Equal(t, "Zebra", habits[0].Name)
	assert.Equal(t, "Apple", habits[1].Name)
	assert.Equal(t, "Mango", habits[2].Name)
}

func TestCreateDefaultsAndNormalizes(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", model.HabitInput{
		Name:            "  Stretch ",
		ReminderWeekday: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Stretch", h.Name)
	assert.Equal(t, model.CategoryDaily, h.Category)
	assert.Nil(t, h.ReminderWeekday, "weekday is absent unless weekly with a reminder")
}

func TestCreateValidationLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	_, err := store.Create(ctx, "o", model.HabitInput{Name: "x"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = store.Create(ctx, "o", model.HabitInput{Name: "Run", Category: "hourly"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = store.Create(ctx, "o", model.HabitInput{Name: "Run", Category: model.CategoryWeekly, ReminderEnabled: true, ReminderTime: &model.ClockTime{Hour: 10}})
	require.ErrorIs(t, err, model.ErrValidation)

	habits, err := store.List(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, habits)
}

func TestInvalidOwner(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	_, err := store.List(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = store.Create(ctx, "  ", drinkWater())
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = store.Update(ctx, "", "id", model.HabitPatch{})
	assert.ErrorIs(t, err, ErrInvalidOwner)
	assert.ErrorIs(t, store.Delete(ctx, "", "id"), ErrInvalidOwner)
	_, err = store.ToggleCompletion(ctx, "", "id", date(0), true)
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = store.Logs(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidOwner)
	assert.ErrorIs(t, store.Reset(ctx, ""), ErrInvalidOwner)
}

func TestPaddedOwnerIsRejected(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	_, err := store.Create(ctx, "alice", drinkWater())
	require.NoError(t, err)

	for _, owner := range []string{" alice", "alice ", "\talice"} {
		_, err = store.Create(ctx, owner, drinkWater())
		assert.ErrorIs(t, err, ErrInvalidOwner, "owner %q", owner)
		_, err = store.List(ctx, owner)
		assert.ErrorIs(t, err, ErrInvalidOwner, "owner %q", owner)
	}

	habits, err := store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

func TestUpdatePartialMerge(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	_, err = store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.NoError(t, err)

	updated, err := store.Update(ctx, "o", h.ID, model.HabitPatch{Name: strPtr("Drink More Water")})
	require.NoError(t, err)
	assert.Equal(t, "Drink More Water", updated.Name)
	assert.Equal(t, "8 glasses a day", updated.Description)
	assert.Equal(t, []string{date(0)}, updated.CompletedDates, "dates untouched when not in the patch")
	assert.Equal(t, 1, updated.Streak)
	assert.Equal(t, h.CreatedAt, updated.CreatedAt)
	assert.Equal(t, h.ID, updated.ID)

	dates := []string{date(-1), date(-2), date(-1)}
	updated, err = store.Update(ctx, "o", h.ID, model.HabitPatch{CompletedDates: &dates})
	require.NoError(t, err)
	assert.Equal(t, []string{date(-2), date(-1)}, updated.CompletedDates)
	assert.Equal(t, 2, updated.Streak)
}

func TestUpdateRejectsInvalidAndMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)

	_, err = store.Update(ctx, "o", h.ID, model.HabitPatch{Name: strPtr("x")})
	require.ErrorIs(t, err, model.ErrValidation)

	got, err := store.Get(ctx, "o", h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drink Water", got.Name)

	_, err = store.Update(ctx, "o", "missing", model.HabitPatch{Name: strPtr("Valid")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "o", "missing"), ErrNotFound)
	_, err = store.ToggleCompletion(ctx, "o", "missing", date(0), true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "o", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDisablingReminderDropsNotificationID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	h, err = store.Update(ctx, "o", h.ID, model.HabitPatch{NotificationID: strPtr("trigger-1")})
	require.NoError(t, err)
	assert.Equal(t, "trigger-1", h.NotificationID)

	h, err = store.Update(ctx, "o", h.ID, model.HabitPatch{ReminderEnabled: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, h.NotificationID)
}

func TestToggleCompletionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)

	once, err := store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.NoError(t, err)
	twice, err := store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.NoError(t, err)

	assert.Equal(t, once.CompletedDates, twice.CompletedDates)
	assert.Equal(t, once.Streak, twice.Streak)
	assert.Equal(t, 1, twice.Streak)

	removed, err := store.ToggleCompletion(ctx, "o", h.ID, date(-5), false)
	require.NoError(t, err)
	assert.Equal(t, []string{date(0)}, removed.CompletedDates)

	logs, err := store.Logs(ctx, "o")
	require.NoError(t, err)
	require.Len(t, logs, 1, "only newly added dates are logged")
	assert.Equal(t, date(0), logs[0].Date)
	assert.Equal(t, h.ID, logs[0].HabitID)
}

func TestToggleCompletionKeepsDatesSorted(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	for _, d := range []string{date(0), date(-2), date(-1)} {
		h, err = store.ToggleCompletion(ctx, "o", h.ID, d, true)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{date(-2), date(-1), date(0)}, h.CompletedDates)
	assert.Equal(t, 3, h.Streak)

	h, err = store.ToggleCompletion(ctx, "o", h.ID, date(-1), false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Streak)
}

func TestToggleCompletionRejectsBadDate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	_, err = store.ToggleCompletion(ctx, "o", h.ID, "10/03/2026", true)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestConcurrentTogglesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, slowBlobStore{BlobStore: repository.NewMemoryBlobStore(), delay: 2 * time.Millisecond})

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			<-start
			_, err := store.ToggleCompletion(ctx, "o", h.ID, date(-offset), true)
			assert.NoError(t, err)
		}(i)
	}
	close(start)
	wg.Wait()

	got, err := store.Get(ctx, "o", h.ID)
	require.NoError(t, err)
	assert.Len(t, got.CompletedDates, n)
	assert.Equal(t, n, got.Streak)
	assert.Equal(t, 0, store.locks.size(), "owner locks are released")
}

func TestConcurrentMutationsAcrossOwners(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, slowBlobStore{BlobStore: repository.NewMemoryBlobStore(), delay: time.Millisecond})

	var wg sync.WaitGroup
	for _, owner := range []string{"a", "b", "c"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(owner string) {
				defer wg.Done()
				_, err := store.Create(ctx, owner, model.HabitInput{Name: "Walk " + owner})
				assert.NoError(t, err)
			}(owner)
		}
	}
	wg.Wait()

	for _, owner := range []string{"a", "b", "c"} {
		habits, err := store.List(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, habits, 5)
		for _, h := range habits {
			assert.Equal(t, owner, h.OwnerID)
		}
	}
}

func TestStorageFailureKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyBlobStore{BlobStore: repository.NewMemoryBlobStore()}
	store, _ := newTestStore(t, flaky)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)

	flaky.failSet.Store(true)
	_, err = store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, errDiskGone)
	_, err = store.Create(ctx, "o", model.HabitInput{Name: "Second"})
	require.ErrorIs(t, err, ErrStorageUnavailable)
	flaky.failSet.Store(false)

	habits, err := store.List(ctx, "o")
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Empty(t, habits[0].CompletedDates)

	flaky.failGet.Store(true)
	_, err = store.List(ctx, "o")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestCorruptBlobIsStorageError(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryBlobStore()
	store, _ := newTestStore(t, mem)
	require.NoError(t, mem.Set(ctx, habitsKey("o"), []byte("{not json")))

	_, err := store.List(ctx, "o")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestStreakIsEvaluatedAtReadTime(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	_, err = store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	got, err := store.Get(ctx, "o", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak, "yesterday still counts")

	clock.Advance(24 * time.Hour)
	got, err = store.Get(ctx, "o", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Streak)
}

func TestOwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "alice", drinkWater())
	require.NoError(t, err)

	habits, err := store.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, habits)
	assert.ErrorIs(t, store.Delete(ctx, "bob", h.ID), ErrNotFound)
}

func TestResetRemovesHabitsAndLogs(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	h, err := store.Create(ctx, "o", drinkWater())
	require.NoError(t, err)
	_, err = store.ToggleCompletion(ctx, "o", h.ID, date(0), true)
	require.NoError(t, err)
	_, err = store.Create(ctx, "other", drinkWater())
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "o"))

	habits, err := store.List(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, habits)
	logs, err := store.Logs(ctx, "o")
	require.NoError(t, err)
	assert.Empty(t, logs)

	others, err := store.List(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestInsights(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	a, err := store.Create(ctx, "o", model.HabitInput{Name: "Read"})
	require.NoError(t, err)
	b, err := store.Create(ctx, "o", model.HabitInput{Name: "Walk"})
	require.NoError(t, err)
	for _, d := range []string{date(0), date(-1)} {
		_, err = store.ToggleCompletion(ctx, "o", a.ID, d, true)
		require.NoError(t, err)
	}
	for _, d := range []string{date(0), date(-30)} {
		_, err = store.ToggleCompletion(ctx, "o", b.ID, d, true)
		require.NoError(t, err)
	}

	insights, err := store.Insights(ctx, "o", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, insights.HabitCount)
	assert.Equal(t, 3, insights.TotalStreak)
	require.Len(t, insights.Days, 7)
	assert.Equal(t, date(-6), insights.Days[0].Date)
	assert.Equal(t, model.DayCount{Date: date(0), Count: 2}, insights.Days[6])
	assert.Equal(t, model.DayCount{Date: date(-1), Count: 1}, insights.Days[5])

	assert.Equal(t, 4, insights.TotalCompletions)
	assert.Equal(t, map[string]int{date(0): 2, date(-1): 1, date(-30): 1}, insights.Contributions)
}

func TestHabitStoreOverSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "habits.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store, _ := newTestStore(t, repository.NewBlobRepository(db))

	h, err := store.Create(ctx, "42", drinkWater())
	require.NoError(t, err)
	_, err = store.ToggleCompletion(ctx, "42", h.ID, date(0), true)
	require.NoError(t, err)

	habits, err := store.List(ctx, "42")
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, 1, habits[0].Streak)

	require.NoError(t, store.Delete(ctx, "42", h.ID))
	habits, err = store.List(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, habits)
}

func TestStorageKeysNeverCarryRawOwner(t *testing.T) {
	key := habitsKey("a.b/c d")
	assert.NotContains(t, key[len("habits."):], ".")
	assert.NotContains(t, key, " ")
	assert.NotEqual(t, habitsKey("x"), logsKey("x"))
	assert.NoError(t, checkOwner("ok"))
}
