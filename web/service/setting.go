package service

import (
	"strconv"

	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/database/model"
	"github.com/xui-tools/xui-bot/util/common"
)

// Runtime-togglable settings live in the settings table; everything
// that needs a restart anyway stays in config.
var defaultValueMap = map[string]string{
	"notificationsEnabled": "true",
	"backupEnabled":        "true",
	"pollPaused":           "false",
}

type SettingService struct{}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	db := database.GetDB()
	setting := &model.Setting{}
	err := db.Model(model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	db := database.GetDB()
	if database.IsNotFound(err) {
		return db.Create(&model.Setting{Key: key, Value: value}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return db.Save(setting).Error
}

func (s *SettingService) getString(key string) (string, error) {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		value, ok := defaultValueMap[key]
		if !ok {
			return "", common.NewErrorf("key <%v> not in settings", key)
		}
		return value, nil
	} else if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) getBool(key string) (bool, error) {
	str, err := s.getString(key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(str)
}

func (s *SettingService) setBool(key string, value bool) error {
	return s.saveSetting(key, strconv.FormatBool(value))
}

func (s *SettingService) GetNotificationsEnabled() (bool, error) {
	return s.getBool("notificationsEnabled")
}

func (s *SettingService) SetNotificationsEnabled(value bool) error {
	return s.setBool("notificationsEnabled", value)
}

func (s *SettingService) GetBackupEnabled() (bool, error) {
	return s.getBool("backupEnabled")
}

func (s *SettingService) SetBackupEnabled(value bool) error {
	return s.setBool("backupEnabled", value)
}

func (s *SettingService) GetPollPaused() (bool, error) {
	return s.getBool("pollPaused")
}

func (s *SettingService) SetPollPaused(value bool) error {
	return s.setBool("pollPaused", value)
}
