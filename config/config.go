// Package config exposes process configuration for the bot. Values come
// from the environment (optionally loaded from a .env file) and may be
// overridden by a TOML file pointed at by XUIBOT_CONFIG.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// fileOverrides mirrors the optional TOML config file. A field set in
// the file wins over the corresponding environment variable.
type fileOverrides struct {
	BotToken      string `toml:"botToken"`
	AdminIds      string `toml:"adminIds"`
	PanelURL      string `toml:"panelUrl"`
	PanelUsername string `toml:"panelUsername"`
	PanelPassword string `toml:"panelPassword"`
	PollInterval  string `toml:"pollInterval"`
	BackupCron    string `toml:"backupCron"`
	BackupKey     string `toml:"backupKey"`
	WebListen     string `toml:"webListen"`
	TotpSecret    string `toml:"totpSecret"`
}

var overrides fileOverrides

func init() {
	_ = godotenv.Load()

	path := os.Getenv("XUIBOT_CONFIG")
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config file %s: %v\n", path, err)
		return
	}
	if err := toml.Unmarshal(data, &overrides); err != nil {
		fmt.Fprintf(os.Stderr, "config file %s: %v\n", path, err)
	}
}

func fromFileOrEnv(fileVal, envKey string) string {
	if fileVal != "" {
		return fileVal
	}
	return os.Getenv(envKey)
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("XUIBOT_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("XUIBOT_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("XUIBOT_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "data"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("XUIBOT_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "logs"
	}
	return logFolderPath
}

func GetBackupFolder() string {
	backupFolderPath := os.Getenv("XUIBOT_BACKUP_FOLDER")
	if backupFolderPath == "" {
		backupFolderPath = "backups"
	}
	return backupFolderPath
}

func GetBotToken() string {
	return fromFileOrEnv(overrides.BotToken, "BOT_TOKEN")
}

// GetAdminIds parses the comma-separated admin chat id list. Malformed
// entries are skipped rather than failing startup.
func GetAdminIds() []int64 {
	raw := fromFileOrEnv(overrides.AdminIds, "ADMIN_IDS")
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ignoring bad admin id %q\n", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func GetPanelURL() string {
	return strings.TrimRight(fromFileOrEnv(overrides.PanelURL, "PANEL_URL"), "/")
}

func GetPanelUsername() string {
	return fromFileOrEnv(overrides.PanelUsername, "PANEL_USERNAME")
}

func GetPanelPassword() string {
	return fromFileOrEnv(overrides.PanelPassword, "PANEL_PASSWORD")
}

func GetPollInterval() time.Duration {
	return durationValue(fromFileOrEnv(overrides.PollInterval, "POLL_INTERVAL"), 5*time.Minute)
}

func GetAPITimeout() time.Duration {
	return durationValue(os.Getenv("API_TIMEOUT"), 30*time.Second)
}

func GetMaxRetries() int {
	return intEnv("MAX_RETRIES", 3)
}

func GetWorkerCount() int {
	return intEnv("WORKER_COUNT", 8)
}

func GetPageSize() int {
	return intEnv("PAGE_SIZE", 100)
}

func GetBackupCron() string {
	cronSpec := fromFileOrEnv(overrides.BackupCron, "BACKUP_CRON")
	if cronSpec == "" {
		cronSpec = "@daily"
	}
	return cronSpec
}

func GetMaxBackups() int {
	return intEnv("MAX_BACKUPS", 7)
}

// GetBackupKey returns the secret backup archives are sealed with.
// Empty means backups are stored unencrypted.
func GetBackupKey() string {
	return fromFileOrEnv(overrides.BackupKey, "BACKUP_KEY")
}

// GetWebListen returns the status API listen address, empty to disable.
func GetWebListen() string {
	return fromFileOrEnv(overrides.WebListen, "WEB_LISTEN")
}

// GetTotpSecret returns the TOTP secret guarding destructive bot
// commands, empty to disable the check.
func GetTotpSecret() string {
	return fromFileOrEnv(overrides.TotpSecret, "TOTP_SECRET")
}

func intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func durationValue(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	// Accept either a Go duration ("5m") or plain seconds ("300").
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
