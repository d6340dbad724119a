package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"habit-tracker/internal/streak"
)

// Category drives both reminder cadence and streak semantics.
type Category string

const (
	CategoryDaily  Category = "daily"
	CategoryWeekly Category = "weekly"
)

const (
	NameMinLen        = 2
	NameMaxLen        = 50
	DescriptionMaxLen = 100

	// DefaultReminderWeekday is Monday in the 1=Sunday..7=Saturday numbering.
	DefaultReminderWeekday = 2
)

// ParseCategory accepts the category names case-insensitively.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryDaily:
		return CategoryDaily, nil
	case CategoryWeekly:
		return CategoryWeekly, nil
	default:
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", raw)}
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryDaily || c == CategoryWeekly
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses an HH:MM string.
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return ClockTime{}, &ValidationError{Field: "reminderTime", Reason: fmt.Sprintf("invalid time %q, expected HH:MM", raw)}
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, &ValidationError{Field: "reminderTime", Reason: fmt.Sprintf("invalid hour in %q", raw)}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClockTime{}, &ValidationError{Field: "reminderTime", Reason: fmt.Sprintf("invalid minute in %q", raw)}
	}
	t := ClockTime{Hour: hour, Minute: minute}
	if !t.Valid() {
		return ClockTime{}, &ValidationError{Field: "reminderTime", Reason: fmt.Sprintf("time %q out of range", raw)}
	}
	return t, nil
}

// Valid reports whether the hour and minute are in range.
func (t ClockTime) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t ClockTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ClockTime) UnmarshalText(data []byte) error {
	parsed, err := ParseClockTime(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DefaultReminderTime is the time the edit form prefills for a category.
func DefaultReminderTime(c Category) ClockTime {
	if c == CategoryWeekly {
		return ClockTime{Hour: 10}
	}
	return ClockTime{Hour: 9}
}

// Habit is a tracked recurring activity. Streak is a cache of
// streak.Compute over CompletedDates and is never set by callers.
type Habit struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        Category   `json:"category"`
	CompletedDates  []string   `json:"completedDates"`
	Streak          int        `json:"streak"`
	ReminderEnabled bool       `json:"reminderEnabled"`
	ReminderTime    *ClockTime `json:"reminderTime,omitempty"`
	ReminderWeekday *int       `json:"reminderWeekday,omitempty"`
	NotificationID  string     `json:"notificationId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// HabitInput holds the user-supplied fields for a new habit.
type HabitInput struct {
	Name            string
	Description     string
	Category        Category
	ReminderEnabled bool
	ReminderTime    *ClockTime
	ReminderWeekday *int
}

// HabitPatch is a partial update. Nil fields are left untouched.
type HabitPatch struct {
	Name                 *string
	Description          *string
	Category             *Category
	ReminderEnabled      *bool
	ReminderTime         *ClockTime
	ReminderWeekday      *int
	ClearReminderWeekday bool
	NotificationID       *string
	CompletedDates       *[]string
}

// TouchesReminder reports whether the patch changes anything a scheduled
// trigger depends on, including the text it was created with.
func (p HabitPatch) TouchesReminder() bool {
	return p.Name != nil || p.Description != nil || p.Category != nil ||
		p.ReminderEnabled != nil || p.ReminderTime != nil ||
		p.ReminderWeekday != nil || p.ClearReminderWeekday
}

// Apply merges the patch into h. Streak is not touched here.
func (p HabitPatch) Apply(h *Habit) {
	if p.Name != nil {
		h.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		h.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		h.Category = *p.Category
	}
	if p.ReminderEnabled != nil {
		h.ReminderEnabled = *p.ReminderEnabled
	}
	if p.ReminderTime != nil {
		t := *p.ReminderTime
		h.ReminderTime = &t
	}
	if p.ClearReminderWeekday {
		h.ReminderWeekday = nil
	}
	if p.ReminderWeekday != nil {
		wd := *p.ReminderWeekday
		h.ReminderWeekday = &wd
	}
	if p.NotificationID != nil {
		h.NotificationID = *p.NotificationID
	}
	if p.CompletedDates != nil {
		h.CompletedDates = append([]string(nil), (*p.CompletedDates)...)
	}
}

// Normalize drops fields that must be absent for the current settings.
func (h *Habit) Normalize() {
	if h.Category != CategoryWeekly || !h.ReminderEnabled {
		h.ReminderWeekday = nil
	}
	if !h.ReminderEnabled {
		h.NotificationID = ""
	}
	h.CompletedDates = streak.Normalize(h.CompletedDates)
}

// Validate checks the user-editable fields.
func (h Habit) Validate() error {
	if n := utf8.RuneCountInString(strings.TrimSpace(h.Name)); n < NameMinLen || n > NameMaxLen {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("length must be between %d and %d", NameMinLen, NameMaxLen)}
	}
	if utf8.RuneCountInString(h.Description) > DescriptionMaxLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("length must be at most %d", DescriptionMaxLen)}
	}
	if !h.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", h.Category)}
	}
	if h.ReminderEnabled {
		if h.ReminderTime == nil {
			return &ValidationError{Field: "reminderTime", Reason: "required when reminder is enabled"}
		}
		if !h.ReminderTime.Valid() {
			return &ValidationError{Field: "reminderTime", Reason: fmt.Sprintf("time %s out of range", h.ReminderTime)}
		}
		if h.Category == CategoryWeekly {
			if h.ReminderWeekday == nil {
				return &ValidationError{Field: "reminderWeekday", Reason: "required for weekly reminders"}
			}
			if *h.ReminderWeekday < 1 || *h.ReminderWeekday > 7 {
				return &ValidationError{Field: "reminderWeekday", Reason: "must be between 1 (Sunday) and 7 (Saturday)"}
			}
		}
	}
	for _, d := range h.CompletedDates {
		if _, err := streak.ParseDate(d); err != nil {
			return &ValidationError{Field: "completedDates", Reason: fmt.Sprintf("invalid date %q", d)}
		}
	}
	return nil
}

// ErrValidation is the sentinel every ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a bad field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// CompletionLog is one entry of the flat per-owner completion log.
type CompletionLog struct {
	HabitID   string    `json:"habitId"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// DayCount is the number of completions across all habits on one date.
type DayCount struct {
	Date  string
	Count int
}

// Insights summarizes the stored completion sets.
type Insights struct {
	Days        []DayCount
	TotalStreak int
	HabitCount  int
	// Contributions counts completions per date over the whole history.
	Contributions    map[string]int
	TotalCompletions int
}
