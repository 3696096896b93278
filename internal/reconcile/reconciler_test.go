package reconcile_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvsync/internal/fragments"
	"mvsync/internal/muxer"
	"mvsync/internal/reconcile"
	"mvsync/internal/services"
	"mvsync/internal/testsupport"
)

type record struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recorder struct {
	mu      *sync.Mutex
	records *[]record
	attrs   []slog.Attr
}

func newRecorder() (*slog.Logger, *recorder) {
	r := &recorder{mu: &sync.Mutex{}, records: &[]record{}}
	return slog.New(r), r
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := map[string]any{}
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, record{level: rec.Level, msg: rec.Message, attrs: attrs})
	return nil
}

func (r *recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recorder{mu: r.mu, records: r.records, attrs: append(append([]slog.Attr(nil), r.attrs...), attrs...)}
}

func (r *recorder) WithGroup(string) slog.Handler { return r }

func (r *recorder) all() []record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]record(nil), (*r.records)...)
}

func (r *recorder) atLevel(level slog.Level) []record {
	var out []record
	for _, rec := range r.all() {
		if rec.level == level {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) find(msg string) (record, bool) {
	for _, rec := range r.all() {
		if rec.msg == msg {
			return rec, true
		}
	}
	return record{}, false
}

type fakeMerger struct {
	fail  map[string]muxer.Result
	calls [][3]string
}

func (f *fakeMerger) Merge(_ context.Context, video, audio, output string) (muxer.Result, error) {
	f.calls = append(f.calls, [3]string{video, audio, output})
	if res, ok := f.fail[output]; ok {
		return res, services.Wrap(services.ErrExternalTool, "merge", "run muxer", "exited non-zero", nil)
	}
	if err := os.WriteFile(output, []byte("merged"), 0o644); err != nil {
		return muxer.Result{ExitCode: -1}, err
	}
	return muxer.Result{}, nil
}

func newOptions(root string) reconcile.Options {
	return reconcile.Options{Root: root, Suffixes: fragments.DefaultSuffixes, ContainerExtension: "mp4"}
}

func TestRunMergesPairAndKeepsOrphan(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteFragments(t, root, "a.f137", "a.f251", "b.f137")
	logger, rec := newRecorder()
	merger := &fakeMerger{}

	summary, err := reconcile.New(newOptions(root), merger, logger).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 1, summary.Orphaned)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, reconcile.PhaseDone, summary.Phase)

	assert.True(t, testsupport.Exists(t, filepath.Join(root, "a.mp4")))
	assert.False(t, testsupport.Exists(t, paths[0]))
	assert.False(t, testsupport.Exists(t, paths[1]))
	assert.True(t, testsupport.Exists(t, paths[2]))

	require.Len(t, merger.calls, 1)
	assert.Equal(t, [3]string{paths[0], paths[1], filepath.Join(root, "a.mp4")}, merger.calls[0])

	warnings := rec.atLevel(slog.LevelWarn)
	require.Len(t, warnings, 1, "orphan must be reported exactly once")
	assert.Equal(t, "video-only fragment (no matching audio)", warnings[0].msg)
	assert.Equal(t, paths[2], warnings[0].attrs["path"])

	final, ok := rec.find("reconcile run complete")
	require.True(t, ok)
	assert.EqualValues(t, 1, final.attrs["merged"])
	assert.EqualValues(t, 1, final.attrs["orphaned"])
}

func TestRunMissingRootLogsNothing(t *testing.T) {
	logger, rec := newRecorder()
	merger := &fakeMerger{}

	summary, err := reconcile.New(newOptions(filepath.Join(t.TempDir(), "missing")), merger, logger).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrConfiguration))
	assert.True(t, services.IsFatal(err))
	assert.Equal(t, reconcile.PhaseFailed, summary.Phase)
	assert.Empty(t, rec.all())
	assert.Empty(t, merger.calls)
}

func TestRunMergeFailureKeepsSources(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteFragments(t, root, "x/song.f137", "x/song.f251")
	output := filepath.Join(root, "x", "song.mp4")
	logger, rec := newRecorder()
	merger := &fakeMerger{fail: map[string]muxer.Result{output: {ExitCode: 1, Output: "moov atom not found"}}}

	summary, err := reconcile.New(newOptions(root), merger, logger).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Merged)
	assert.Equal(t, 1, summary.Failed)
	for _, p := range paths {
		assert.True(t, testsupport.Exists(t, p), "source %s must survive a failed merge", p)
	}

	errs := rec.atLevel(slog.LevelError)
	require.Len(t, errs, 1)
	assert.Equal(t, "moov atom not found", errs[0].attrs["tool_output"])
	assert.EqualValues(t, 1, errs[0].attrs["exit_code"])

	require.Len(t, summary.Actions, 1)
	assert.Equal(t, reconcile.ResultFailed, summary.Actions[0].Result)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFragments(t, root, "a.f137", "a.f251", "b.f137", "b.f251", "c.f137", "c.f251")
	merger := &fakeMerger{fail: map[string]muxer.Result{filepath.Join(root, "b.mp4"): {ExitCode: 1}}}
	logger, _ := newRecorder()

	summary, err := reconcile.New(newOptions(root), merger, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, merger.calls, 3)
	assert.Equal(t, 2, summary.Merged)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunRerunOverwritesOutput(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFragments(t, root, "a.f137", "a.f251")
	testsupport.WriteFile(t, filepath.Join(root, "a.mp4"), 4)
	logger, _ := newRecorder()

	summary, err := reconcile.New(newOptions(root), &fakeMerger{}, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Merged)
}

func TestRunDeletesOrphansWhenEnabled(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteFragments(t, root, "v.f137", "a.f251")
	opts := newOptions(root)
	opts.DeleteOrphans = true
	logger, rec := newRecorder()

	summary, err := reconcile.New(opts, &fakeMerger{}, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Orphaned)
	assert.Equal(t, 2, summary.OrphansDeleted)
	for _, p := range paths {
		assert.False(t, testsupport.Exists(t, p))
	}
	_, ok := rec.find("audio-only fragment (no matching video)")
	assert.True(t, ok)
	_, ok = rec.find("deleted orphan fragment")
	assert.True(t, ok)
}

func TestRunDeletionFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "locked")
	paths := testsupport.WriteFragments(t, root, "locked/o.f137")
	opts := newOptions(root)
	opts.DeleteOrphans = true
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	logger, _ := newRecorder()
	summary, err := reconcile.New(opts, &fakeMerger{}, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Orphaned)
	assert.Equal(t, 0, summary.OrphansDeleted)
	assert.Equal(t, 1, summary.DeleteFailures)
	assert.True(t, testsupport.Exists(t, paths[0]))
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteFragments(t, root, "a.f137", "a.f251", "b.f251")
	opts := newOptions(root)
	opts.DryRun = true
	opts.DeleteOrphans = true
	merger := &fakeMerger{}
	logger, _ := newRecorder()

	summary, err := reconcile.New(opts, merger, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, merger.calls)
	assert.Equal(t, 0, summary.Merged)
	assert.Equal(t, 1, summary.Orphaned)
	assert.Equal(t, 0, summary.OrphansDeleted)
	for _, p := range paths {
		assert.True(t, testsupport.Exists(t, p))
	}
	require.Len(t, summary.Actions, 2)
	for _, a := range summary.Actions {
		assert.Equal(t, reconcile.ResultPlanned, a.Result)
	}
}

// merged + orphaned equals the number of distinct identities when every
// merge succeeds.
func TestRunCountsCoverEveryIdentity(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFragments(t, root,
		"1.f137", "1.f251", "2.f137", "3.f251", "d/4.f137", "d/4.f251", "d/5.F137", "ignored.webm",
	)
	logger, _ := newRecorder()

	summary, err := reconcile.New(newOptions(root), &fakeMerger{}, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Identities())
	assert.Equal(t, summary.Identities(), summary.Merged+summary.Orphaned)
}

func TestRunCountsDuplicateFragments(t *testing.T) {
	root := t.TempDir()
	paths := testsupport.WriteFragments(t, root, "a.F137", "a.f137", "a.f251")
	logger, rec := newRecorder()
	merger := &fakeMerger{}

	summary, err := reconcile.New(newOptions(root), merger, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Merged)
	assert.Equal(t, 0, summary.Orphaned)

	require.Len(t, merger.calls, 1)
	assert.Equal(t, paths[1], merger.calls[0][0], "later fragment in walk order is merged")
	assert.True(t, testsupport.Exists(t, paths[0]), "replaced duplicate is left alone")

	dup, ok := rec.find("duplicate fragment replaced by later match")
	require.True(t, ok)
	assert.Equal(t, slog.LevelDebug, dup.level)
	assert.Equal(t, paths[0], dup.attrs["path"])

	final, ok := rec.find("reconcile run complete")
	require.True(t, ok)
	assert.EqualValues(t, 1, final.attrs["duplicates"])
	assert.EqualValues(t, 1, final.attrs["identities"])
}

func TestRunAttachesRunID(t *testing.T) {
	root := t.TempDir()
	logger, rec := newRecorder()
	ctx := services.WithRunID(context.Background(), "run-123")

	summary, err := reconcile.New(newOptions(root), &fakeMerger{}, logger).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-123", summary.RunID)
	start, ok := rec.find("fragment cleanup start")
	require.True(t, ok)
	assert.Equal(t, "run-123", start.attrs["run_id"])
	assert.Equal(t, root, start.attrs["video_root"])
	assert.Equal(t, "reconcile", start.attrs["component"])
}

func TestRunWithoutMerger(t *testing.T) {
	_, err := reconcile.New(newOptions(t.TempDir()), nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
