package model

import "fmt"

// ReminderRequest describes the recurring trigger for one habit.
type ReminderRequest struct {
	OwnerID  string
	HabitID  string
	Title    string
	Body     string
	Hour     int
	Minute   int
	Category Category
	Weekday  *int
}

// Reminder is the payload handed to the notifier when a trigger fires.
type Reminder struct {
	TriggerID string
	OwnerID   string
	HabitID   string
	Title     string
	Body      string
}

// ReminderRequestFor builds the trigger request for h with the text the
// edit screen always used.
func ReminderRequestFor(h Habit) ReminderRequest {
	req := ReminderRequest{
		OwnerID:  h.OwnerID,
		HabitID:  h.ID,
		Title:    fmt.Sprintf("Time for %s!", h.Name),
		Body:     h.Description,
		Category: h.Category,
		Weekday:  h.ReminderWeekday,
	}
	if req.Body == "" {
		req.Body = "Keep up the streak!"
	}
	if h.ReminderTime != nil {
		req.Hour = h.ReminderTime.Hour
		req.Minute = h.ReminderTime.Minute
	}
	return req
}
