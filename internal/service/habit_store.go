package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
	"habit-tracker/internal/streak"
)

// BlobStore is the whole-value key-value medium the store persists into.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// HabitStore owns each owner's habit collection. Mutations of one owner's
// collection are serialized so read-modify-write cycles never interleave;
// reads take no lock.
type HabitStore struct {
	blobs BlobStore
	locks *ownerLocks
	now   func() time.Time
	loc   *time.Location
	newID func() string
}

// StoreOption configures a HabitStore.
type StoreOption func(*HabitStore)

// WithClock replaces the wall clock used for createdAt and "today".
func WithClock(now func() time.Time) StoreOption {
	return func(s *HabitStore) { s.now = now }
}

// WithLocation sets the zone calendar dates are evaluated in.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *HabitStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator replaces the habit id generator.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *HabitStore) { s.newID = fn }
}

func NewHabitStore(blobs BlobStore, opts ...StoreOption) *HabitStore {
	s := &HabitStore{
		blobs: blobs,
		locks: newOwnerLocks(),
		now:   time.Now,
		loc:   time.Local,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the store's zone.
func (s *HabitStore) Today() time.Time {
	return s.now().In(s.loc)
}

// List returns the owner's habits in insertion order.
func (s *HabitStore) List(ctx context.Context, owner string) ([]model.Habit, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	habits, err := s.loadHabits(ctx, owner)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	for i := range habits {
		habits[i].Streak = streak.Compute(habits[i].CompletedDates, today)
	}
	return habits, nil
}

// Get returns one habit.
func (s *HabitStore) Get(ctx context.Context, owner, id string) (model.Habit, error) {
	habits, err := s.List(ctx, owner)
	if err != nil {
		return model.Habit{}, err
	}
	idx := indexOf(habits, id)
	if idx < 0 {
		return model.Habit{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return habits[idx], nil
}

// Create validates input and appends a new habit to the owner's collection.
func (s *HabitStore) Create(ctx context.Context, owner string, input model.HabitInput) (model.Habit, error) {
	if err := checkOwner(owner); err != nil {
		return model.Habit{}, err
	}

	habit := model.Habit{
		ID:              s.newID(),
		OwnerID:         owner,
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		Category:        input.Category,
		CompletedDates:  []string{},
		ReminderEnabled: input.ReminderEnabled,
		CreatedAt:       s.now().UTC(),
	}
	if habit.Category == "" {
		habit.Category = model.CategoryDaily
	}
	if input.ReminderTime != nil {
		t := *input.ReminderTime
		habit.ReminderTime = &t
	}
	if input.ReminderWeekday != nil {
		wd := *input.ReminderWeekday
		habit.ReminderWeekday = &wd
	}
	if err := habit.Validate(); err != nil {
		return model.Habit{}, err
	}
	habit.Normalize()

	unlock := s.locks.lock(owner)
	defer unlock()

	habits, err := s.loadHabits(ctx, owner)
	if err != nil {
		return model.Habit{}, err
	}
	habits = append(habits, habit)
	if err := s.saveHabits(ctx, owner, habits); err != nil {
		return model.Habit{}, err
	}

	logger.Debug("habit created", "owner", owner, "habit", habit.ID, "category", habit.Category)
	return habit, nil
}

// Update merges patch into the stored habit. The streak is recomputed only
// when the patch replaces the completion dates.
func (s *HabitStore) Update(ctx context.Context, owner, id string, patch model.HabitPatch) (model.Habit, error) {
	if err := checkOwner(owner); err != nil {
		return model.Habit{}, err
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	habits, err := s.loadHabits(ctx, owner)
	if err != nil {
		return model.Habit{}, err
	}
	idx := indexOf(habits, id)
	if idx < 0 {
		return model.Habit{}, fmt.Errorf("update %q: %w", id, ErrNotFound)
	}

	updated := habits[idx]
	patch.Apply(&updated)
	if err := updated.Validate(); err != nil {
		return model.Habit{}, err
	}
	updated.Normalize()
	if patch.CompletedDates != nil {
		updated.Streak = streak.Compute(updated.CompletedDates, s.Today())
	}

	habits[idx] = updated
	if err := s.saveHabits(ctx, owner, habits); err != nil {
		return model.Habit{}, err
	}

	updated.Streak = streak.Compute(updated.CompletedDates, s.Today())
	return updated, nil
}

// Delete removes a habit from the owner's collection.
func (s *HabitStore) Delete(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	habits, err := s.loadHabits(ctx, owner)
	if err != nil {
		return err
	}
	idx := indexOf(habits, id)
	if idx < 0 {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	habits = append(habits[:idx], habits[idx+1:]...)
	if err := s.saveHabits(ctx, owner, habits); err != nil {
		return err
	}

	logger.Debug("habit deleted", "owner", owner, "habit", id)
	return nil
}

// ToggleCompletion adds or removes date from the habit's completion set.
// Adding a present date or removing an absent one leaves the set unchanged
// but still recomputes the streak.
func (s *HabitStore) ToggleCompletion(ctx context.Context, owner, id, date string, completed bool) (model.Habit, error) {
	if err := checkOwner(owner); err != nil {
		return model.Habit{}, err
	}
	if _, err := streak.ParseDate(date); err != nil {
		return model.Habit{}, &model.ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q", date)}
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	habits, err := s.loadHabits(ctx, owner)
	if err != nil {
		return model.Habit{}, err
	}
	idx := indexOf(habits, id)
	if idx < 0 {
		return model.Habit{}, fmt.Errorf("toggle %q: %w", id, ErrNotFound)
	}

	habit := habits[idx]
	present := false
	for _, d := range habit.CompletedDates {
		if d == date {
			present = true
			break
		}
	}
	switch {
	case completed && !present:
		habit.CompletedDates = streak.Normalize(append(habit.CompletedDates, date))
	case !completed && present:
		kept := make([]string, 0, len(habit.CompletedDates))
		for _, d := range habit.CompletedDates {
			if d != date {
				kept = append(kept, d)
			}
		}
		habit.CompletedDates = kept
	}
	habit.Streak = streak.Compute(habit.CompletedDates, s.Today())

	habits[idx] = habit
	if err := s.saveHabits(ctx, owner, habits); err != nil {
		return model.Habit{}, err
	}

	if completed && !present {
		entry := model.CompletionLog{HabitID: id, Date: date, Timestamp: s.now().UTC()}
		if err := s.appendLog(ctx, owner, entry); err != nil {
			logger.Warn("completion log not written", "owner", owner, "habit", id, "err", err)
		}
	}

	logger.Debug("habit toggled", "owner", owner, "habit", id, "date", date, "completed", completed, "streak", habit.Streak)
	return habit, nil
}

// Logs returns the owner's flat completion log, oldest first.
func (s *HabitStore) Logs(ctx context.Context, owner string) ([]model.CompletionLog, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var logs []model.CompletionLog
	if err := s.load(ctx, logsKey(owner), &logs); err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.CompletionLog{}
	}
	return logs, nil
}

// Reset removes every habit and log entry of the owner.
func (s *HabitStore) Reset(ctx context.Context, owner string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}

	unlock := s.locks.lock(owner)
	defer unlock()

	if err := s.blobs.Remove(ctx, habitsKey(owner)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := s.blobs.Remove(ctx, logsKey(owner)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	logger.Info("owner data reset", "owner", owner)
	return nil
}

// Insights counts completions per day over the last days days, ending today,
// and over the whole history, and sums the current streaks.
func (s *HabitStore) Insights(ctx context.Context, owner string, days int) (model.Insights, error) {
	habits, err := s.List(ctx, owner)
	if err != nil {
		return model.Insights{}, err
	}
	if days <= 0 {
		days = 7
	}

	counts := make(map[string]int)
	out := model.Insights{HabitCount: len(habits), Contributions: counts}
	for _, h := range habits {
		out.TotalStreak += h.Streak
		out.TotalCompletions += len(h.CompletedDates)
		for _, d := range h.CompletedDates {
			counts[d]++
		}
	}

	today := s.Today()
	for i := days - 1; i >= 0; i-- {
		date := streak.DateString(today.AddDate(0, 0, -i))
		out.Days = append(out.Days, model.DayCount{Date: date, Count: counts[date]})
	}
	return out, nil
}

func (s *HabitStore) appendLog(ctx context.Context, owner string, entry model.CompletionLog) error {
	var logs []model.CompletionLog
	if err := s.load(ctx, logsKey(owner), &logs); err != nil {
		return err
	}
	logs = append(logs, entry)
	return s.save(ctx, logsKey(owner), logs)
}

func (s *HabitStore) loadHabits(ctx context.Context, owner string) ([]model.Habit, error) {
	var habits []model.Habit
	if err := s.load(ctx, habitsKey(owner), &habits); err != nil {
		return nil, err
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	return habits, nil
}

func (s *HabitStore) saveHabits(ctx context.Context, owner string, habits []model.Habit) error {
	return s.save(ctx, habitsKey(owner), habits)
}

func (s *HabitStore) load(ctx context.Context, key string, dst any) error {
	data, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrStorageUnavailable, key, err)
	}
	return nil
}

// save marshals the whole value before writing, so a failure leaves the
// previous snapshot in place.
func (s *HabitStore) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.blobs.Set(ctx, key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// checkOwner rejects blank owners and owners with surrounding whitespace, so
// one identity always maps to one storage key.
func checkOwner(owner string) error {
	if owner == "" || strings.TrimSpace(owner) != owner {
		return ErrInvalidOwner
	}
	return nil
}

func habitsKey(owner string) string {
	return "habits." + encodeOwner(owner)
}

func logsKey(owner string) string {
	return "logs." + encodeOwner(owner)
}

func encodeOwner(owner string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(owner))
}

func indexOf(habits []model.Habit, id string) int {
	for i, h := range habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}
