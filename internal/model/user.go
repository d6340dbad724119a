package model

import (
	"strconv"
	"time"
)

// User stores Telegram user metadata. NotificationsEnabled is the user's
// reminder permission: reminders are only scheduled while it is set.
type User struct {
	ID                   uint  `gorm:"primaryKey"`
	TelegramID           int64 `gorm:"uniqueIndex"`
	FirstName            string
	LastName             string
	Username             string
	NotificationsEnabled bool `gorm:"default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OwnerID is the habit owner identifier derived from the Telegram account.
func (u User) OwnerID() string {
	return strconv.FormatInt(u.TelegramID, 10)
}
