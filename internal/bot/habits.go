package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
	"habit-tracker/internal/service"
	"habit-tracker/internal/streak"
)

func (b *Bot) startNewHabitConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.activeSession(ctx, msg.From); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	logger.Debug("start new habit conversation", "user", msg.From.ID)
	b.conversations.set(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New habit.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		state.input.Name = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Daily or weekly?", categoryKeyboard())
	case stageCategory:
		category, err := model.ParseCategory(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick «Daily» or «Weekly».", categoryKeyboard())
		}
		state.input.Category = category
		state.stage = stageReminder
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Should I remind you?", yesNoKeyboard())
	case stageReminder:
		yes, ok := parseYesNo(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Press «Yes» or «No».", yesNoKeyboard())
		}
		if !yes {
			err := b.finishHabitCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.conversations.clear(msg.From.ID)
			return err
		}
		state.input.ReminderEnabled = true
		state.stage = stageReminderTime
		def := model.DefaultReminderTime(state.input.Category)
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("🕘 At what time? Use <code>HH:MM</code> (or «Skip» for %s).", def), skipKeyboard())
	case stageReminderTime:
		at := model.DefaultReminderTime(state.input.Category)
		if !isSkipInput(text) {
			parsed, err := model.ParseClockTime(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "I can't read that time. Use <code>HH:MM</code>, e.g. <code>07:30</code>.", skipKeyboard())
			}
			at = parsed
		}
		state.input.ReminderTime = &at
		if state.input.Category != model.CategoryWeekly {
			err := b.finishHabitCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.conversations.clear(msg.From.ID)
			return err
		}
		state.stage = stageReminderWeekday
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("📆 On which day? (or «Skip» for %s)", weekdayName(model.DefaultReminderWeekday)), weekdayKeyboard())
	case stageReminderWeekday:
		wd := model.DefaultReminderWeekday
		if !isSkipInput(text) {
			parsed, err := parseWeekday(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick a day of the week.", weekdayKeyboard())
			}
			wd = parsed
		}
		state.input.ReminderWeekday = &wd
		err := b.finishHabitCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.conversations.clear(msg.From.ID)
		return err
	default:
		b.conversations.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /newhabit.")
	}
}

func (b *Bot) finishHabitCreation(ctx context.Context, from *tgbotapi.User, input model.HabitInput, chatID int64) error {
	session, err := b.activeSession(ctx, from)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	habit, err := session.Create(ctx, input)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	logger.Info("habit created", "user", from.ID, "habit", habit.ID, "reminder", habit.NotificationID != "")

	var summary strings.Builder
	summary.WriteString("✅ <b>Habit saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(habit.Name)))
	if habit.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(habit.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", habit.Category))
	if line := reminderLine(habit); line != "" {
		summary.WriteString(fmt.Sprintf("• <b>Reminder:</b> %s\n", line))
	}
	if habit.ReminderEnabled && habit.NotificationID == "" {
		summary.WriteString("⚠️ Notifications are off, so no reminder was scheduled. Use /notifications on.\n")
	}

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendHabitList(chatID, session)
}

func (b *Bot) handleListHabits(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if err := session.Refresh(ctx); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendHabitList(msg.Chat.ID, session)
}

func (b *Bot) sendHabitList(chatID int64, session *service.Session) error {
	habits := session.Habits()
	if len(habits) == 0 {
		return b.sendText(chatID, "You have no habits yet. Add one with /newhabit.")
	}

	today := streak.DateString(b.tracker.Today())
	msg := tgbotapi.NewMessage(chatID, formatHabitList(habits, today))
	msg.ReplyMarkup = habitKeyboard(habits, today)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message, completed bool) error {
	command := "/done"
	if !completed {
		command = "/undo"
	}
	n, date, err := parseIndexAndDate(msg.CommandArguments(), streak.DateString(b.tracker.Today()))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Usage: %s &lt;n&gt; [YYYY-MM-DD], e.g. %s 2", command, command))
	}

	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	habit, ok := session.HabitAt(n)
	if !ok {
		return b.sendText(msg.Chat.ID, userMessage(service.ErrNotFound))
	}
	return b.toggleAndReply(ctx, msg.Chat.ID, session, habit.ID, date, completed)
}

func (b *Bot) toggleAndReply(ctx context.Context, chatID int64, session *service.Session, habitID, date string, completed bool) error {
	habit, err := session.Toggle(ctx, habitID, date, completed)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	logger.Info("habit toggled", "owner", session.Owner(), "habit", habit.ID, "date", date, "completed", completed)
	var text string
	if completed {
		text = fmt.Sprintf("✅ «%s» done on %s. Streak: %s", escape(habit.Name), date, formatStreak(habit.Streak))
	} else {
		text = fmt.Sprintf("↩️ «%s» unmarked for %s. Streak: %s", escape(habit.Name), date, formatStreak(habit.Streak))
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	n, patch, err := parseEditArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("%s\nUsage: /edit 2 name=Drink water; time=08:30; reminder=on", escape(err.Error())))
	}

	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	current, ok := session.HabitAt(n)
	if !ok {
		return b.sendText(msg.Chat.ID, userMessage(service.ErrNotFound))
	}
	fillReminderDefaults(current, &patch)

	habit, err := session.Edit(ctx, current.ID, patch)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	logger.Info("habit edited", "owner", session.Owner(), "habit", habit.ID)
	text := fmt.Sprintf("✏️ Updated «%s».", escape(habit.Name))
	if line := reminderLine(habit); line != "" {
		text += fmt.Sprintf("\n%s %s", iconReminder, line)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	n, err := parseIndex(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /delete &lt;n&gt;, e.g. /delete 2")
	}

	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	habit, ok := session.HabitAt(n)
	if !ok {
		return b.sendText(msg.Chat.ID, userMessage(service.ErrNotFound))
	}
	return b.askDeleteConfirmation(msg.Chat.ID, msg.From.ID, habit)
}

func (b *Bot) askDeleteConfirmation(chatID, userID int64, habit model.Habit) error {
	b.confirmations.set(userID, confirmationRequest{habitID: habit.ID, name: habit.Name, action: actionDelete})
	text := fmt.Sprintf("Delete «%s» with all its history?", escape(habit.Name))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.activeSession(ctx, msg.From); err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	b.confirmations.set(msg.From.ID, confirmationRequest{action: actionReset})
	return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Delete <b>all</b> habits, history and reminders? This cannot be undone.", confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.confirmations.clear(msg.From.ID)
		session, err := b.activeSession(ctx, msg.From)
		if err != nil {
			return b.sendText(msg.Chat.ID, userMessage(err))
		}
		if req.action == actionReset {
			if err := session.Reset(ctx); err != nil {
				return b.sendText(msg.Chat.ID, userMessage(err))
			}
			logger.Info("owner reset", "owner", session.Owner())
			return b.sendText(msg.Chat.ID, "🧹 Everything is cleared. Start fresh with /newhabit.")
		}
		if err := session.Delete(ctx, req.habitID); err != nil {
			return b.sendText(msg.Chat.ID, userMessage(err))
		}
		logger.Info("habit deleted", "owner", session.Owner(), "habit", req.habitID)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 «%s» deleted.", escape(req.name)))
	case isCancelInput(text):
		b.confirmations.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Nothing changed.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}

	args := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if args == "" {
		user, err := b.userRepo.FindByTelegramID(ctx, msg.From.ID)
		if err != nil {
			return err
		}
		state := "off"
		if user.NotificationsEnabled {
			state = "on"
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Notifications are %s. Use /notifications on or /notifications off.", state))
	}

	enabled, ok := parseOnOff(args)
	if !ok {
		return b.sendText(msg.Chat.ID, "Use /notifications on or /notifications off.")
	}
	if err := b.userRepo.SetNotifications(ctx, msg.From.ID, enabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Send /start first.")
		}
		return err
	}

	// Rescheduling re-asks for permission, so it both restores and drops triggers.
	live, err := b.tracker.RestoreReminders(ctx, session.Owner())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	logger.Info("notifications changed", "user", msg.From.ID, "enabled", enabled, "live", live)

	if enabled {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Notifications on. %d reminder(s) scheduled.", live))
	}
	return b.sendText(msg.Chat.ID, "🔕 Notifications off. Reminders are paused.")
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	session, err := b.activeSession(ctx, msg.From)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	insights, err := session.Insights(ctx, insightsDays)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, formatInsights(insights))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	session, err := b.activeSession(ctx, cb.From)
	if err != nil {
		b.ackCallback(cb, "")
		return b.sendText(chatID, userMessage(err))
	}
	today := streak.DateString(b.tracker.Today())

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		b.ackCallback(cb, "")
		return b.toggleAndReply(ctx, chatID, session, strings.TrimPrefix(data, cbDonePrefix), today, true)
	case strings.HasPrefix(data, cbUndoPrefix):
		b.ackCallback(cb, "")
		return b.toggleAndReply(ctx, chatID, session, strings.TrimPrefix(data, cbUndoPrefix), today, false)
	case strings.HasPrefix(data, cbDeletePrefix):
		b.ackCallback(cb, "")
		habit, err := b.tracker.Get(ctx, session.Owner(), strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		return b.askDeleteConfirmation(chatID, cb.From.ID, habit)
	default:
		b.ackCallback(cb, "")
		return nil
	}
}

// fillReminderDefaults completes a patch that turns a reminder on without
// saying when, using the same defaults as habit creation.
func fillReminderDefaults(current model.Habit, patch *model.HabitPatch) {
	category := current.Category
	if patch.Category != nil {
		category = *patch.Category
	}
	enabled := current.ReminderEnabled
	if patch.ReminderEnabled != nil {
		enabled = *patch.ReminderEnabled
	}
	if !enabled {
		return
	}
	if patch.ReminderTime == nil && current.ReminderTime == nil {
		at := model.DefaultReminderTime(category)
		patch.ReminderTime = &at
	}
	if category == model.CategoryWeekly && patch.ReminderWeekday == nil && current.ReminderWeekday == nil {
		wd := model.DefaultReminderWeekday
		patch.ReminderWeekday = &wd
	}
}

func habitKeyboard(habits []model.Habit, today string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, h := range habits {
		var toggle tgbotapi.InlineKeyboardButton
		if completedOn(h, today) {
			toggle = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↩️ %d · %s", i+1, shortName(h.Name, shortNameButtons)), cbUndoPrefix+h.ID)
		} else {
			toggle = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d · %s", iconDone, i+1, shortName(h.Name, shortNameButtons)), cbDonePrefix+h.ID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			toggle,
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+h.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
