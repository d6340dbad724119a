package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
)

// Notifier delivers fired reminders and owns the per-owner permission.
// A denied permission is reported as false with a nil error.
type Notifier interface {
	RequestPermission(ctx context.Context, owner string) (bool, error)
	Notify(ctx context.Context, reminder model.Reminder) error
}

// ReminderScheduler turns habit reminder settings into recurring triggers.
// It never touches the habit store; callers persist the returned ids.
type ReminderScheduler struct {
	notifier Notifier
	cron     *SchedulerService
	newID    func() string
	timeout  time.Duration

	mu       sync.Mutex
	triggers map[string]trigger
}

type trigger struct {
	entry    cron.EntryID
	reminder model.Reminder
}

func NewReminderScheduler(notifier Notifier, scheduler *SchedulerService) *ReminderScheduler {
	return &ReminderScheduler{
		notifier: notifier,
		cron:     scheduler,
		newID:    uuid.NewString,
		timeout:  30 * time.Second,
		triggers: make(map[string]trigger),
	}
}

// RequestPermission asks the notifier whether owner accepts reminders.
func (r *ReminderScheduler) RequestPermission(ctx context.Context, owner string) (bool, error) {
	granted, err := r.notifier.RequestPermission(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("%w: permission: %w", ErrSchedulerUnavailable, err)
	}
	return granted, nil
}

// Schedule creates a recurring trigger and returns its id. Without
// permission it returns an empty id and no error.
func (r *ReminderScheduler) Schedule(ctx context.Context, req model.ReminderRequest) (string, error) {
	return r.schedule(ctx, "", req)
}

// Reinstate schedules req again under an id issued earlier, so that a stored
// trigger id becomes live without rewriting the habit. It reports whether the
// trigger is live.
func (r *ReminderScheduler) Reinstate(ctx context.Context, id string, req model.ReminderRequest) (bool, error) {
	if id == "" {
		return false, nil
	}
	r.Cancel(id)
	got, err := r.schedule(ctx, id, req)
	return got != "", err
}

func (r *ReminderScheduler) schedule(ctx context.Context, id string, req model.ReminderRequest) (string, error) {
	granted, err := r.RequestPermission(ctx, req.OwnerID)
	if err != nil {
		return "", err
	}
	if !granted {
		logger.Info("reminder permission not granted", "owner", req.OwnerID, "habit", req.HabitID)
		return "", nil
	}

	if id == "" {
		id = r.newID()
	}
	reminder := model.Reminder{
		TriggerID: id,
		OwnerID:   req.OwnerID,
		HabitID:   req.HabitID,
		Title:     req.Title,
		Body:      req.Body,
	}
	job := func() { r.deliver(reminder) }

	var entry cron.EntryID
	switch req.Category {
	case model.CategoryWeekly:
		if req.Weekday == nil {
			return "", &model.ValidationError{Field: "reminderWeekday", Reason: "required for weekly reminders"}
		}
		entry, err = r.cron.ScheduleWeekly(*req.Weekday, req.Hour, req.Minute, job)
	case model.CategoryDaily:
		entry, err = r.cron.ScheduleDaily(req.Hour, req.Minute, job)
	default:
		return "", &model.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", req.Category)}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err)
	}

	r.mu.Lock()
	r.triggers[id] = trigger{entry: entry, reminder: reminder}
	r.mu.Unlock()

	logger.Debug("reminder scheduled", "owner", req.OwnerID, "habit", req.HabitID, "trigger", id,
		"category", req.Category, "time", fmt.Sprintf("%02d:%02d", req.Hour, req.Minute))
	return id, nil
}

// Cancel removes a trigger. Empty and unknown ids are ignored.
func (r *ReminderScheduler) Cancel(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	t, ok := r.triggers[id]
	delete(r.triggers, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.cron.Remove(t.entry)
	logger.Debug("reminder cancelled", "owner", t.reminder.OwnerID, "habit", t.reminder.HabitID, "trigger", id)
}

// CancelAll removes every trigger this scheduler created.
func (r *ReminderScheduler) CancelAll() {
	r.mu.Lock()
	triggers := r.triggers
	r.triggers = make(map[string]trigger)
	r.mu.Unlock()

	for _, t := range triggers {
		r.cron.Remove(t.entry)
	}
	logger.Info("all reminders cancelled", "count", len(triggers))
}

// Live returns the ids of all live triggers, sorted.
func (r *ReminderScheduler) Live() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.triggers))
	for id := range r.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LiveFor returns the ids of live triggers created for habitID.
func (r *ReminderScheduler) LiveFor(habitID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, t := range r.triggers {
		if t.reminder.HabitID == habitID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// NextFire returns when the trigger fires next; zero before the cron runs.
func (r *ReminderScheduler) NextFire(id string) (time.Time, bool) {
	r.mu.Lock()
	t, ok := r.triggers[id]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Next(t.entry), true
}

func (r *ReminderScheduler) deliver(reminder model.Reminder) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.notifier.Notify(ctx, reminder); err != nil {
		logger.Warn("reminder delivery failed", "owner", reminder.OwnerID, "habit", reminder.HabitID, "err", err)
		return
	}
	logger.Debug("reminder delivered", "owner", reminder.OwnerID, "habit", reminder.HabitID)
}
