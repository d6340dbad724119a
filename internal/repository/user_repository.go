package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"habit-tracker/internal/model"
)

// UserRepository keeps the Telegram accounts that own habit collections.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram signs a Telegram account in. New accounts start with
// reminders permitted; an existing account only gets its profile refreshed.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	profile := model.User{
		TelegramID:           telegramID,
		FirstName:            firstName,
		LastName:             lastName,
		Username:             username,
		NotificationsEnabled: true,
	}

	var user model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username", "updated_at"}),
		}).Create(&profile).Error
		if err != nil {
			return err
		}
		return tx.Where("telegram_id = ?", telegramID).First(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("sign in user %d: %w", telegramID, err)
	}
	return &user, nil
}

// FindByTelegramID returns gorm.ErrRecordNotFound for accounts that never signed in.
func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SetNotifications stores the user's reminder permission.
func (r *UserRepository) SetNotifications(ctx context.Context, telegramID int64, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Update("notifications_enabled", enabled)
	if res.Error != nil {
		return fmt.Errorf("update notifications: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListAll returns every known account in sign-up order.
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
