package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"habit-tracker/internal/model"
	"habit-tracker/internal/streak"
)

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("habit number must be a positive integer, got %q", raw)
	}
	return n, nil
}

// parseIndexAndDate reads "<n> [YYYY-MM-DD]"; the date defaults to today.
func parseIndexAndDate(args, today string) (int, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", errors.New("expected a habit number and an optional date")
	}
	n, err := parseIndex(fields[0])
	if err != nil {
		return 0, "", err
	}
	if len(fields) == 1 {
		return n, today, nil
	}
	d, err := streak.ParseDate(fields[1])
	if err != nil {
		return 0, "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", fields[1])
	}
	return n, streak.DateString(d), nil
}

// parseEditArgs reads "<n> key=value; key=value".
func parseEditArgs(args string) (int, model.HabitPatch, error) {
	var patch model.HabitPatch
	args = strings.TrimSpace(args)
	head, rest, _ := strings.Cut(args, " ")
	n, err := parseIndex(head)
	if err != nil {
		return 0, patch, err
	}

	changed := false
	for _, part := range strings.Split(rest, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return 0, patch, fmt.Errorf("expected key=value, got %q", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "name":
			patch.Name = &value
		case "description", "desc":
			if value == "-" {
				value = ""
			}
			patch.Description = &value
		case "category":
			c, err := model.ParseCategory(value)
			if err != nil {
				return 0, patch, err
			}
			patch.Category = &c
		case "reminder":
			on, ok := parseOnOff(value)
			if !ok {
				return 0, patch, fmt.Errorf("reminder must be on or off, got %q", value)
			}
			patch.ReminderEnabled = &on
		case "time":
			t, err := model.ParseClockTime(value)
			if err != nil {
				return 0, patch, err
			}
			patch.ReminderTime = &t
		case "weekday", "day":
			if value == "-" {
				patch.ClearReminderWeekday = true
				break
			}
			wd, err := parseWeekday(value)
			if err != nil {
				return 0, patch, err
			}
			patch.ReminderWeekday = &wd
		default:
			return 0, patch, fmt.Errorf("unknown field %q", key)
		}
		changed = true
	}
	if !changed {
		return 0, patch, errors.New("nothing to change")
	}
	return n, patch, nil
}

// parseWeekday accepts 1..7 (1=Sunday) or an English day name.
func parseWeekday(raw string) (int, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > 7 {
			return 0, fmt.Errorf("weekday must be between 1 and 7, got %d", n)
		}
		return n, nil
	}
	if len(value) >= 3 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if strings.HasPrefix(strings.ToLower(wd.String()), value) {
				return int(wd) + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

func weekdayName(wd int) string {
	if wd < 1 || wd > 7 {
		return "?"
	}
	return time.Weekday(wd - 1).String()
}

func parseYesNo(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "да":
		return true, true
	case "no", "n", "-", "нет":
		return false, true
	default:
		return false, false
	}
}

func parseOnOff(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func formatHabitList(habits []model.Habit, today string) string {
	var b strings.Builder
	b.WriteString("📋 <b>Your habits</b>\n")
	b.WriteString("Tap a button to mark today done or undo it.\n\n")
	for i, h := range habits {
		icon := iconPending
		if completedOn(h, today) {
			icon = iconDone
		}
		b.WriteString(fmt.Sprintf("%s <b>%d.</b> %s · 🔥 %s\n", icon, i+1, escape(h.Name), formatStreak(h.Streak)))
		if h.Description != "" {
			b.WriteString(fmt.Sprintf("   📝 %s\n", escape(h.Description)))
		}
		if line := reminderLine(h); line != "" {
			b.WriteString(fmt.Sprintf("   %s %s\n", iconReminder, line))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatStreak(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// reminderLine describes the reminder of h, empty when it has none.
func reminderLine(h model.Habit) string {
	if !h.ReminderEnabled || h.ReminderTime == nil {
		return ""
	}
	var line string
	if h.Category == model.CategoryWeekly && h.ReminderWeekday != nil {
		line = fmt.Sprintf("every %s at %s", weekdayName(*h.ReminderWeekday), h.ReminderTime)
	} else {
		line = fmt.Sprintf("every day at %s", h.ReminderTime)
	}
	if h.NotificationID == "" {
		line += " (paused)"
	}
	return line
}

func formatInsights(in model.Insights) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Last %d days</b>\n", len(in.Days)))
	for _, d := range in.Days {
		label := d.Date
		if t, err := streak.ParseDate(d.Date); err == nil {
			label = t.Format("Mon 02 Jan")
		}
		bar := strings.Repeat("■", d.Count)
		if bar == "" {
			bar = "·"
		}
		b.WriteString(fmt.Sprintf("<code>%s</code> %s %d\n", label, bar, d.Count))
	}
	b.WriteString(fmt.Sprintf("\n🔥 Total streak: %s across %d habit(s)", formatStreak(in.TotalStreak), in.HabitCount))
	if in.TotalCompletions > 0 {
		b.WriteString(fmt.Sprintf("\n✅ All time: %d completion(s) on %d day(s)", in.TotalCompletions, len(in.Contributions)))
	}
	return b.String()
}

func completedOn(h model.Habit, date string) bool {
	for _, d := range h.CompletedDates {
		if d == date {
			return true
		}
	}
	return false
}

func shortName(name string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(name, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
