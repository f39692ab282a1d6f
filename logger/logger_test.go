package logger

import (
	"strings"
	"sync"
	"testing"

	"github.com/op/go-logging"
)

func TestLogWithoutInit(t *testing.T) {
	// The package-level default backend must accept log calls before
	// InitLogger ever runs.
	Warning("warning before init")
	Infof("info before init %d", 1)

	logs := GetLogs(10, "DEBUG")
	if len(logs) == 0 {
		t.Fatal("GetLogs() returned nothing after logging")
	}
	found := false
	for _, entry := range logs {
		if strings.Contains(entry, "warning before init") {
			found = true
		}
	}
	if !found {
		t.Errorf("buffered entries %v do not contain the warning", logs)
	}
}

func TestGetLogsLevelFilterAndOrder(t *testing.T) {
	Debug("filter debug entry")
	Error("filter error entry")

	logs := GetLogs(maxBufferedEntries, "ERROR")
	for _, entry := range logs {
		if strings.Contains(entry, "filter debug entry") {
			t.Errorf("DEBUG entry leaked through ERROR filter: %s", entry)
		}
	}
	if len(logs) == 0 || !strings.Contains(logs[0], "filter error entry") {
		t.Errorf("newest entry first, got %v", logs)
	}
}

func TestBufferConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				Info("concurrent entry")
				GetLogs(5, "DEBUG")
			}
		}()
	}
	wg.Wait()

	if logs := GetLogs(1, "DEBUG"); len(logs) != 1 {
		t.Errorf("GetLogs(1) = %d entries, want 1", len(logs))
	}
}

func TestBufferBounded(t *testing.T) {
	for i := 0; i < maxBufferedEntries+100; i++ {
		addToBuffer(logging.INFO, "bounded entry")
	}

	bufferMu.Lock()
	size := len(logBuffer)
	bufferMu.Unlock()
	if size > maxBufferedEntries {
		t.Errorf("buffer grew to %d entries, cap is %d", size, maxBufferedEntries)
	}
}
