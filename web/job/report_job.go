package job

import (
	"github.com/xui-tools/xui-bot/web/service"
)

// ReportJob sends the periodic admin digest.
type ReportJob struct {
	tgbotService *service.Tgbot
}

func NewReportJob(tgbotService *service.Tgbot) *ReportJob {
	return &ReportJob{tgbotService: tgbotService}
}

func (j *ReportJob) Run() {
	if !j.tgbotService.IsRunning() {
		return
	}
	j.tgbotService.SendReport()
}
