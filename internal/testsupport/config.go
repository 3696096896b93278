package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mvsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The video root is created; log and state directories are left for
// EnsureDirectories.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VideoRoot = filepath.Join(base, "videos")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	if err := os.MkdirAll(cfgVal.Paths.VideoRoot, 0o755); err != nil {
		t.Fatalf("mkdir video root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDeleteOrphans toggles orphan deletion on the test config.
func WithDeleteOrphans(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fragments.DeleteOrphans = enabled
	}
}

// WithHistory enables the run history store.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
	}
}

// WithMissingRoot points the video root at a path that does not exist.
func WithMissingRoot() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.VideoRoot = filepath.Join(b.baseDir, "missing")
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0\n")
		}
		prependPath(b.t, binDir)
	}
}

// WithMuxerScript installs an executable named "ffmpeg" with the given shell
// body and points the config at it. The script receives the muxer arguments;
// the output path is the final argument.
func WithMuxerScript(body string) ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(b.baseDir, "bin", "ffmpeg")
		WriteScript(b.t, target, body)
		b.cfg.Muxer.Binary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.VideoRoot)
}

func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}
