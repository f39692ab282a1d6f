package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/web/service"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "xui-bot-job-test")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := database.InitDB(filepath.Join(dir, "x-ui-bot.db")); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	code := m.Run()

	database.CloseDB()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestPollJobSkipsWhilePaused(t *testing.T) {
	settingService := service.SettingService{}
	if err := settingService.SetPollPaused(true); err != nil {
		t.Fatalf("SetPollPaused() error = %v", err)
	}
	defer settingService.SetPollPaused(false)

	// The job has no panel service wired; touching it would panic, so
	// a clean return proves the pause check fired first.
	j := NewPollJob(context.Background(), nil)
	j.Run()
}

func TestPollJobSkipsWhileRunning(t *testing.T) {
	j := NewPollJob(context.Background(), nil)
	j.running.Store(true)
	defer j.running.Store(false)

	j.Run()
}
