package service

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/database/model"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/util/crypto"
)

// BackupService produces encrypted, compressed snapshots of the bot
// database and keeps the backup folder rotated.
type BackupService struct {
	settingService SettingService
}

// CreateBackup checkpoints the database, gzips it, seals it when a
// backup key is configured and writes it under the backup folder. The
// written path is returned for the caller to ship wherever it wants.
func (s *BackupService) CreateBackup() (string, error) {
	start := time.Now()

	if err := database.Checkpoint(); err != nil {
		return "", fmt.Errorf("checkpoint before backup: %w", err)
	}

	raw, err := os.ReadFile(config.GetDBPath())
	if err != nil {
		return "", fmt.Errorf("read database: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", fmt.Errorf("compress database: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress database: %w", err)
	}

	payload := buf.Bytes()
	encrypted := false
	ext := ".db.gz"
	if key := config.GetBackupKey(); key != "" {
		payload, err = crypto.Seal(crypto.DeriveKey(key), payload)
		if err != nil {
			s.record("", 0, false, err)
			return "", fmt.Errorf("seal backup: %w", err)
		}
		encrypted = true
		ext = ".db.gz.enc"
	}

	backupDir := config.GetBackupFolder()
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return "", fmt.Errorf("create backup folder: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s%s",
		config.GetName(), start.Format("20060102-150405"), uuid.NewString()[:8], ext)
	path := filepath.Join(backupDir, name)
	if err := os.WriteFile(path, payload, 0o640); err != nil {
		s.record(name, 0, encrypted, err)
		return "", fmt.Errorf("write backup: %w", err)
	}

	s.record(name, int64(len(payload)), encrypted, nil)
	if err := s.rotate(backupDir); err != nil {
		logger.Warning("backup rotation failed:", err)
	}

	logger.Infof("backup %s written (%d bytes, encrypted=%t)", name, len(payload), encrypted)
	return path, nil
}

// Restore decrypts and decompresses a backup file and verifies it is a
// sqlite database before returning its contents.
func (s *BackupService) Restore(path string) ([]byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".enc") {
		key := config.GetBackupKey()
		if key == "" {
			return nil, fmt.Errorf("backup %s is encrypted but no backup key is configured", path)
		}
		payload, err = crypto.Open(crypto.DeriveKey(key), payload)
		if err != nil {
			return nil, err
		}
	}

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	defer gz.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(gz); err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}

	ok, err := database.IsSQLiteDB(bytes.NewReader(out.Bytes()))
	if err != nil || !ok {
		return nil, fmt.Errorf("backup %s does not contain a sqlite database", path)
	}
	return out.Bytes(), nil
}

// rotate drops the oldest backups beyond the configured maximum.
func (s *BackupService) rotate(backupDir string) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return err
	}

	prefix := config.GetName() + "-"
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names) // timestamped names sort oldest first

	maxBackups := config.GetMaxBackups()
	for len(names) > maxBackups {
		victim := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(backupDir, victim)); err != nil {
			return err
		}
		logger.Debugf("rotated out old backup %s", victim)
	}
	return nil
}

func (s *BackupService) record(name string, size int64, encrypted bool, runErr error) {
	row := &model.Backup{
		FileName:  name,
		SizeBytes: size,
		Encrypted: encrypted,
		Status:    "ok",
		CreatedAt: time.Now().Unix(),
	}
	if runErr != nil {
		row.Status = "failed"
		row.Error = runErr.Error()
	}
	if err := database.GetDB().Create(row).Error; err != nil {
		logger.Warning("record backup run failed:", err)
	}
}
