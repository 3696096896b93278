package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mvsync/internal/logging"
)

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "mvsync-old.log")
	current := filepath.Join(dir, "mvsync-current.log")
	fresh := filepath.Join(dir, "mvsync-fresh.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, current, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{old, current, other} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5,
		logging.RetentionTarget{Dir: dir, Pattern: "mvsync-*.log", Exclude: []string{current}},
	)
	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected stale run log removed")
	}
	for _, p := range []string{current, fresh, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s retained: %v", p, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	if removed := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: t.TempDir()}); removed != 0 {
		t.Fatalf("expected no pruning when disabled, got %d", removed)
	}
}
