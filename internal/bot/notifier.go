package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
)

// Notifier delivers reminders as Telegram messages. A user's permission is
// the notifications flag stored with the user; owners are Telegram ids and
// reminders go to the user's private chat.
type Notifier struct {
	api   Sender
	users *repository.UserRepository
}

func NewNotifier(api Sender, users *repository.UserRepository) *Notifier {
	return &Notifier{api: api, users: users}
}

func (n *Notifier) RequestPermission(ctx context.Context, owner string) (bool, error) {
	user, err := n.lookup(ctx, owner)
	if err != nil {
		return false, err
	}
	return user != nil && user.NotificationsEnabled, nil
}

// Notify sends the reminder unless the user has turned notifications off
// since it was scheduled.
func (n *Notifier) Notify(ctx context.Context, reminder model.Reminder) error {
	user, err := n.lookup(ctx, reminder.OwnerID)
	if err != nil {
		return err
	}
	if user == nil || !user.NotificationsEnabled {
		logger.Debug("reminder skipped", "owner", reminder.OwnerID, "habit", reminder.HabitID)
		return nil
	}

	msg := tgbotapi.NewMessage(user.TelegramID, formatReminder(reminder))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

// lookup returns nil without error for unknown users.
func (n *Notifier) lookup(ctx context.Context, owner string) (*model.User, error) {
	telegramID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("owner %q is not a telegram id: %w", owner, err)
	}
	user, err := n.users.FindByTelegramID(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func formatReminder(r model.Reminder) string {
	return fmt.Sprintf("%s <b>%s</b>\n%s\n\nMark it with /habits.", iconReminder, escape(r.Title), escape(r.Body))
}
