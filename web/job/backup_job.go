package job

import (
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/web/service"
)

// BackupJob creates the scheduled encrypted backup and ships it to the
// admin chats.
type BackupJob struct {
	backupService  service.BackupService
	settingService service.SettingService
	tgbotService   *service.Tgbot
}

func NewBackupJob(tgbotService *service.Tgbot) *BackupJob {
	return &BackupJob{tgbotService: tgbotService}
}

func (j *BackupJob) Run() {
	if enabled, err := j.settingService.GetBackupEnabled(); err == nil && !enabled {
		logger.Debug("backups are disabled, skipping scheduled backup")
		return
	}

	path, err := j.backupService.CreateBackup()
	if err != nil {
		logger.Error("scheduled backup failed:", err)
		return
	}
	j.tgbotService.SendBackupToAdmins(path)
}
