package job

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"

	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/web/service"
	"github.com/xui-tools/xui-bot/xui"
)

// PollJob runs one reconcile cycle per tick. A slow cycle never
// overlaps the next tick; a failed cycle never stops the schedule.
type PollJob struct {
	ctx            context.Context
	panelService   *service.PanelService
	settingService service.SettingService

	running atomic.Bool
}

func NewPollJob(ctx context.Context, panelService *service.PanelService) *PollJob {
	return &PollJob{ctx: ctx, panelService: panelService}
}

func (j *PollJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		logger.Debug("previous poll cycle still running, skipping tick")
		return
	}
	defer j.running.Store(false)

	if paused, err := j.settingService.GetPollPaused(); err == nil && paused {
		logger.Debug("polling is paused, skipping tick")
		return
	}

	stats, err := j.panelService.SyncAll(j.ctx)
	if err != nil {
		var authErr *xui.AuthError
		var transientErr *xui.TransientError
		switch {
		case errors.As(err, &authErr):
			logger.Error("poll cycle aborted, panel rejected our credentials:", err)
		case errors.As(err, &transientErr):
			logger.Warning("poll cycle aborted, panel unreachable:", err)
		case errors.Is(err, context.Canceled):
			logger.Debug("poll cycle cancelled during shutdown")
		default:
			logger.Error("poll cycle failed:", err)
		}
		return
	}

	if stats.Failed > 0 {
		logger.Warningf("poll cycle done in %s: %d clients, %d ok, %d failed, %d notified",
			stats.Duration.Round(time.Millisecond), stats.Fetched, stats.Succeeded, stats.Failed, stats.Notified)
	} else {
		logger.Infof("poll cycle done in %s: %d clients, %d notified",
			stats.Duration.Round(time.Millisecond), stats.Fetched, stats.Notified)
	}
}
