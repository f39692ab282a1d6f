package service

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/util/common"
)

// Status is a point-in-time snapshot of the host the bot runs on.
type Status struct {
	T        time.Time `json:"-"`
	Hostname string    `json:"hostname"`
	Version  string    `json:"version"`
	Cpu      float64   `json:"cpu"`
	CpuCores int       `json:"cpuCores"`
	Loads    []float64 `json:"loads"`
	Uptime   uint64    `json:"uptime"`
	Mem      struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"mem"`
}

type ServerService struct{}

func (s *ServerService) GetStatus() *Status {
	now := time.Now()
	status := &Status{
		T:       now,
		Version: config.GetVersion(),
	}

	if hostname, err := os.Hostname(); err == nil {
		status.Hostname = hostname
	}

	if percents, err := cpu.Percent(0, false); err != nil {
		logger.Warning("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.Cpu = percents[0]
	}

	if cores, err := cpu.Counts(false); err == nil {
		status.CpuCores = cores
	}

	if upTime, err := host.Uptime(); err != nil {
		logger.Warning("get uptime failed:", err)
	} else {
		status.Uptime = upTime
	}

	if memInfo, err := mem.VirtualMemory(); err != nil {
		logger.Warning("get virtual memory failed:", err)
	} else {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	if avgState, err := load.Avg(); err != nil {
		logger.Warning("get load avg failed:", err)
	} else {
		status.Loads = []float64{avgState.Load1, avgState.Load5, avgState.Load15}
	}

	return status
}

// FormatStatus renders the snapshot for a Telegram message.
func (s *ServerService) FormatStatus(status *Status) string {
	out := fmt.Sprintf("💻 Hostname: %s\r\n", status.Hostname)
	out += fmt.Sprintf("🤖 Bot version: %s\r\n", status.Version)
	out += fmt.Sprintf("⏳ Uptime: %s\r\n", common.FormatDuration(time.Duration(status.Uptime)*time.Second))
	out += fmt.Sprintf("📈 CPU: %.1f%% of %d cores\r\n", status.Cpu, status.CpuCores)
	if len(status.Loads) == 3 {
		out += fmt.Sprintf("📊 Load: %.2f %.2f %.2f\r\n", status.Loads[0], status.Loads[1], status.Loads[2])
	}
	out += fmt.Sprintf("💾 RAM: %s / %s\r\n",
		common.FormatTraffic(int64(status.Mem.Current)), common.FormatTraffic(int64(status.Mem.Total)))
	return out
}
