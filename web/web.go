// Package web owns the process runtime: the cron schedule driving poll
// cycles and backups, the Telegram bot, and the optional status API.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/web/controller"
	"github.com/xui-tools/xui-bot/web/job"
	"github.com/xui-tools/xui-bot/web/service"
)

// Server wires services, scheduled jobs and the status API together.
type Server struct {
	httpServer *http.Server

	panelService *service.PanelService
	tgbotService *service.Tgbot

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

func (s *Server) initRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	g := engine.Group("/")
	controller.NewStatusController(g, s.panelService)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine
}

// startTask registers the scheduled jobs: the poll cycle, the backup
// schedule and the daily admin report.
func (s *Server) startTask() {
	pollSpec := fmt.Sprintf("@every %s", config.GetPollInterval())
	if _, err := s.cron.AddJob(pollSpec, job.NewPollJob(s.ctx, s.panelService)); err != nil {
		logger.Error("schedule poll job failed:", err)
	} else {
		logger.Infof("poll cycle scheduled at %s", pollSpec)
	}

	backupSpec := config.GetBackupCron()
	if _, err := s.cron.AddJob(backupSpec, job.NewBackupJob(s.tgbotService)); err != nil {
		logger.Errorf("schedule backup job at %q failed: %v", backupSpec, err)
	} else {
		logger.Infof("backup scheduled at %s", backupSpec)
	}

	if _, err := s.cron.AddJob("@daily", job.NewReportJob(s.tgbotService)); err != nil {
		logger.Error("schedule report job failed:", err)
	}
}

// Start brings up the bot, the schedule and, when configured, the
// status API listener.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.cron = cron.New(cron.WithSeconds())
	s.cron.Start()

	s.panelService = service.NewPanelService()
	s.tgbotService = service.NewTgbot(s.panelService)

	if err = s.tgbotService.Start(); err != nil {
		return err
	}
	// Notifications flow through the bot once it is live.
	s.panelService.SetNotifier(s.tgbotService)

	s.startTask()

	if listen := config.GetWebListen(); listen != "" {
		engine := s.initRouter()
		s.httpServer = &http.Server{
			Addr:    listen,
			Handler: engine,
		}
		go func() {
			logger.Infof("status API listening on %s", listen)
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status API stopped:", err)
			}
		}()
	}

	return nil
}

// Stop shuts everything down, letting in-flight panel calls finish or
// time out instead of killing them mid-request.
func (s *Server) Stop() error {
	s.cancel()

	if s.cron != nil {
		// Wait for running jobs so the last cycle finishes cleanly.
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			logger.Warning("timed out waiting for running jobs to stop")
		}
	}

	if s.tgbotService != nil && s.tgbotService.IsRunning() {
		s.tgbotService.Stop()
	}

	var err error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(shutdownCtx)
	}
	return err
}
