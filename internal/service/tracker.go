package service

import (
	"context"
	"errors"
	"time"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
)

// Tracker ties the habit store to the reminder scheduler. It is the only
// sanctioned edit path for reminder settings: the stored trigger is always
// cancelled before a new one is created, and the new id is written back.
type Tracker struct {
	store     *HabitStore
	reminders *ReminderScheduler
}

func NewTracker(store *HabitStore, reminders *ReminderScheduler) *Tracker {
	return &Tracker{store: store, reminders: reminders}
}

// Today returns the current time in the store's zone.
func (t *Tracker) Today() time.Time {
	return t.store.Today()
}

func (t *Tracker) List(ctx context.Context, owner string) ([]model.Habit, error) {
	return t.store.List(ctx, owner)
}

func (t *Tracker) Get(ctx context.Context, owner, id string) (model.Habit, error) {
	return t.store.Get(ctx, owner, id)
}

func (t *Tracker) Logs(ctx context.Context, owner string) ([]model.CompletionLog, error) {
	return t.store.Logs(ctx, owner)
}

func (t *Tracker) Insights(ctx context.Context, owner string, days int) (model.Insights, error) {
	return t.store.Insights(ctx, owner, days)
}

func (t *Tracker) ToggleCompletion(ctx context.Context, owner, id, date string, completed bool) (model.Habit, error) {
	return t.store.ToggleCompletion(ctx, owner, id, date, completed)
}

// CreateHabit persists a new habit and schedules its reminder if enabled.
// A reminder that cannot be scheduled leaves the habit without one.
func (t *Tracker) CreateHabit(ctx context.Context, owner string, input model.HabitInput) (model.Habit, error) {
	habit, err := t.store.Create(ctx, owner, input)
	if err != nil {
		return model.Habit{}, err
	}
	if !habit.ReminderEnabled {
		return habit, nil
	}
	return t.attachReminder(ctx, habit)
}

// EditHabit applies patch. When the patch touches anything the reminder
// depends on, the old trigger is cancelled and a new one is scheduled.
func (t *Tracker) EditHabit(ctx context.Context, owner, id string, patch model.HabitPatch) (model.Habit, error) {
	if !patch.TouchesReminder() {
		return t.store.Update(ctx, owner, id, patch)
	}

	current, err := t.store.Get(ctx, owner, id)
	if err != nil {
		return model.Habit{}, err
	}

	cleared := ""
	patch.NotificationID = &cleared
	updated, err := t.store.Update(ctx, owner, id, patch)
	if err != nil {
		return model.Habit{}, err
	}

	t.reminders.Cancel(current.NotificationID)
	if !updated.ReminderEnabled {
		return updated, nil
	}
	return t.attachReminder(ctx, updated)
}

// DeleteHabit cancels the habit's trigger and removes the habit. When the
// removal fails the habit keeps its stored trigger id, so that trigger is
// reinstated.
func (t *Tracker) DeleteHabit(ctx context.Context, owner, id string) error {
	current, err := t.store.Get(ctx, owner, id)
	if err != nil {
		return err
	}
	t.reminders.Cancel(current.NotificationID)
	if err := t.store.Delete(ctx, owner, id); err != nil {
		if current.NotificationID != "" {
			live, rerr := t.reminders.Reinstate(ctx, current.NotificationID, model.ReminderRequestFor(current))
			if rerr != nil || !live {
				logger.Warn("reminder not reinstated", "owner", owner, "habit", id, "err", rerr)
			}
		}
		return err
	}
	return nil
}

// Reset cancels every trigger of the owner and removes all of the owner's data.
func (t *Tracker) Reset(ctx context.Context, owner string) error {
	habits, err := t.store.List(ctx, owner)
	if err != nil {
		return err
	}
	for _, h := range habits {
		t.reminders.Cancel(h.NotificationID)
	}
	return t.store.Reset(ctx, owner)
}

// ResetAll clears every trigger the scheduler owns and removes the data of
// each listed owner.
func (t *Tracker) ResetAll(ctx context.Context, owners []string) error {
	t.reminders.CancelAll()
	var errs []error
	for _, owner := range owners {
		if err := t.store.Reset(ctx, owner); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RestoreReminders reschedules every enabled reminder of the owner, for a
// fresh process whose scheduler holds no triggers. It returns how many
// reminders are live afterwards.
func (t *Tracker) RestoreReminders(ctx context.Context, owner string) (int, error) {
	habits, err := t.store.List(ctx, owner)
	if err != nil {
		return 0, err
	}

	live := 0
	for _, h := range habits {
		if !h.ReminderEnabled {
			continue
		}
		if h.NotificationID != "" {
			t.reminders.Cancel(h.NotificationID)
			cleared := ""
			h, err = t.store.Update(ctx, owner, h.ID, model.HabitPatch{NotificationID: &cleared})
			if err != nil {
				return live, err
			}
		}
		restored, err := t.attachReminder(ctx, h)
		if err != nil {
			return live, err
		}
		if restored.NotificationID != "" {
			live++
		}
	}
	return live, nil
}

func (t *Tracker) attachReminder(ctx context.Context, habit model.Habit) (model.Habit, error) {
	id, err := t.reminders.Schedule(ctx, model.ReminderRequestFor(habit))
	if err != nil {
		logger.Warn("reminder not scheduled", "owner", habit.OwnerID, "habit", habit.ID, "err", err)
		return habit, nil
	}
	if id == "" {
		return habit, nil
	}

	updated, err := t.store.Update(ctx, habit.OwnerID, habit.ID, model.HabitPatch{NotificationID: &id})
	if err != nil {
		t.reminders.Cancel(id)
		return habit, err
	}
	return updated, nil
}
