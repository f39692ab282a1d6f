package service

import (
	"time"

	"github.com/mymmrac/telego"
	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/database/model"
)

// TelegramUserService keeps the record of every chat user who talked
// to the bot.
type TelegramUserService struct{}

// Touch registers the sender on first contact and refreshes the
// activity timestamp afterwards.
func (s *TelegramUserService) Touch(from *telego.User, isAdmin bool) error {
	if from == nil {
		return nil
	}
	db := database.GetDB()
	now := time.Now().Unix()

	var user model.TelegramUser
	err := db.Where("tg_id = ?", from.ID).First(&user).Error
	if database.IsNotFound(err) {
		user = model.TelegramUser{
			TgId:         from.ID,
			Username:     from.Username,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			IsAdmin:      isAdmin,
			CreatedAt:    now,
			LastActivity: now,
		}
		return db.Create(&user).Error
	} else if err != nil {
		return err
	}

	user.Username = from.Username
	user.FirstName = from.FirstName
	user.LastName = from.LastName
	user.IsAdmin = isAdmin
	user.LastActivity = now
	return db.Save(&user).Error
}

// ChatIds returns every chat id that ever talked to the bot, for
// broadcast delivery.
func (s *TelegramUserService) ChatIds() ([]int64, error) {
	db := database.GetDB()
	var ids []int64
	err := db.Model(&model.TelegramUser{}).Pluck("tg_id", &ids).Error
	return ids, err
}

func (s *TelegramUserService) Count() (int64, error) {
	db := database.GetDB()
	var count int64
	err := db.Model(&model.TelegramUser{}).Count(&count).Error
	return count, err
}
