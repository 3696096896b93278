package reconcilerun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvsync/internal/history"
	"mvsync/internal/logging"
	"mvsync/internal/muxer"
	"mvsync/internal/reconcile"
	"mvsync/internal/scheduler"
	"mvsync/internal/services"
	"mvsync/internal/testsupport"
)

type writingMerger struct{ fail bool }

func (m writingMerger) Merge(_ context.Context, _, _, output string) (muxer.Result, error) {
	if m.fail {
		return muxer.Result{ExitCode: 1, Output: "boom"}, services.Wrap(services.ErrExternalTool, "merge", "", "", nil)
	}
	return muxer.Result{}, os.WriteFile(output, []byte("ok"), 0o644)
}

func TestRunWritesLogAndHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	testsupport.WriteFragments(t, cfg.Paths.VideoRoot, "a.f137", "a.f251", "b.f251")

	summary, err := run(context.Background(), cfg, Options{Quiet: true}, writingMerger{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Orphaned)
	assert.NotEmpty(t, summary.RunID)

	pointer := filepath.Join(cfg.Paths.LogDir, "mvsync.log")
	data, err := os.ReadFile(pointer)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "fragment cleanup start")
	assert.Contains(t, content, "audio-only fragment (no matching video)")
	assert.Contains(t, content, "reconcile run complete")
	assert.Contains(t, content, "run_id="+summary.RunID)

	store := testsupport.MustOpenHistory(t, cfg)
	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, history.OutcomeCompleted, runs[0].Outcome)
	assert.Equal(t, 1, runs[0].Merged)
}

func TestRunMissingRootProducesNoLog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMissingRoot(), testsupport.WithHistory())

	summary, err := run(context.Background(), cfg, Options{Quiet: true}, writingMerger{})
	require.Error(t, err)
	assert.True(t, services.IsFatal(err))
	assert.Equal(t, 1, services.ExitCode(err))
	assert.Equal(t, reconcile.PhaseFailed, summary.Phase)

	_, statErr := os.Stat(cfg.Paths.LogDir)
	assert.True(t, os.IsNotExist(statErr), "log directory should not be created for a fatal root error")
}

func TestRunRespectsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	held := scheduler.NewLock(cfg.Paths.StateDir, cfg.Paths.VideoRoot)
	require.NoError(t, held.TryAcquire())
	defer held.Release()

	_, err := run(context.Background(), cfg, Options{Quiet: true}, writingMerger{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrLocked))

	_, err = run(context.Background(), cfg, Options{Quiet: true, NoLock: true}, writingMerger{})
	assert.NoError(t, err)
}

func TestRunDiagnosticWritesDebugLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFragments(t, cfg.Paths.VideoRoot, "x.f137")

	_, err := run(context.Background(), cfg, Options{Quiet: true, Diagnostic: true}, writingMerger{})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "debug", "mvsync.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"dependency snapshot"`), "debug log should carry debug records")
}

func TestToHistoryOutcome(t *testing.T) {
	assert.Equal(t, history.OutcomeDegraded, ToHistory(reconcile.Summary{Failed: 1}, nil).Outcome)
	assert.Equal(t, history.OutcomeCompleted, ToHistory(reconcile.Summary{Merged: 3}, nil).Outcome)
	failed := ToHistory(reconcile.Summary{}, errors.New("scan failed"))
	assert.Equal(t, history.OutcomeFailed, failed.Outcome)
	assert.Equal(t, "scan failed", failed.ErrorMessage)
}

func TestRunPrunesExpiredHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	cfg.Logging.RetentionDays = 7

	seed, err := history.Open(cfg)
	require.NoError(t, err)
	old := time.Now().AddDate(0, 0, -30)
	_, err = seed.Record(context.Background(), history.Run{
		RunID:      "expired",
		VideoRoot:  cfg.Paths.VideoRoot,
		StartedAt:  old,
		FinishedAt: old.Add(time.Second),
		Outcome:    history.OutcomeCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	summary, err := run(context.Background(), cfg, Options{Quiet: true}, writingMerger{})
	require.NoError(t, err)

	store := testsupport.MustOpenHistory(t, cfg)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
}

type failingLock struct{ path string }

func (l failingLock) Release() error { return errors.New("bad file descriptor") }
func (l failingLock) Path() string   { return l.path }

func TestReleaseLockLogsFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err := logging.Open(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	releaseLock(logger, failingLock{path: "/state/locks/reconcile-abcd.lock"})
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"msg":"failed to release run lock"`)
	assert.Contains(t, content, `"level":"warn"`)
	assert.Contains(t, content, "reconcile-abcd.lock")
	assert.Contains(t, content, "bad file descriptor")
}
