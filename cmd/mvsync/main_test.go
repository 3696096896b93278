package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvsync/internal/config"
	"mvsync/internal/services"
	"mvsync/internal/testsupport"
)

// mergeScript answers the version probe and otherwise writes its final
// argument, like a successful stream copy.
const mergeScript = `if [ "$1" = "-version" ]; then echo "ffmpeg version stub"; exit 0; fi
for last; do :; done
printf merged > "$last"
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VIDEO_ROOT", "")
	t.Setenv("FRAGMENT_DELETE_ORPHANS", "")

	opts = append([]testsupport.ConfigOption{testsupport.WithMuxerScript(mergeScript)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "mvsync.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestReconcileMergesAndKeepsOrphan(t *testing.T) {
	env := setupCLITestEnv(t)
	root := env.cfg.Paths.VideoRoot
	testsupport.WriteFragments(t, root, "Artist - Song.f137", "Artist - Song.f251", "Other.f137")

	out, _, err := runCLI(t, []string{"reconcile", "--quiet", "--summary"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "Merged")

	if !testsupport.Exists(t, filepath.Join(root, "Artist - Song.mp4")) {
		t.Fatal("expected merged container")
	}
	for _, gone := range []string{"Artist - Song.f137", "Artist - Song.f251"} {
		if testsupport.Exists(t, filepath.Join(root, gone)) {
			t.Fatalf("expected %s to be removed after merge", gone)
		}
	}
	if !testsupport.Exists(t, filepath.Join(root, "Other.f137")) {
		t.Fatal("orphan must be kept by default")
	}
}

func TestReconcileMissingRootExitsNonZero(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMissingRoot())

	_, _, err := runCLI(t, []string{"reconcile", "--quiet"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing video root")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.ExitCode(err) == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestReconcileMergeFailureStillExitsZero(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMuxerScript("echo 'Invalid data' >&2\nexit 1\n"))
	paths := testsupport.WriteFragments(t, env.cfg.Paths.VideoRoot, "a.f137", "a.f251")

	if _, _, err := runCLI(t, []string{"reconcile", "--quiet"}, env.configPath); err != nil {
		t.Fatalf("merge failures must not fail the command: %v", err)
	}
	for _, p := range paths {
		if !testsupport.Exists(t, p) {
			t.Fatalf("expected %s to survive a failed merge", p)
		}
	}
	data, err := os.ReadFile(filepath.Join(env.cfg.Paths.LogDir, "mvsync.log"))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	requireContains(t, string(data), "fragment merge failed")
	requireContains(t, string(data), "Invalid data")
}

func TestReconcileDryRunPrintsPlan(t *testing.T) {
	env := setupCLITestEnv(t)
	paths := testsupport.WriteFragments(t, env.cfg.Paths.VideoRoot, "a.f137", "a.f251", "b.f251")

	out, _, err := runCLI(t, []string{"reconcile", "--dry-run", "--quiet"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile --dry-run: %v", err)
	}
	requireContains(t, out, "Matched")
	requireContains(t, out, "Audio Only")
	requireContains(t, out, "Planned")
	for _, p := range paths {
		if !testsupport.Exists(t, p) {
			t.Fatalf("dry run must not touch %s", p)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "disabled")

	env = setupCLITestEnv(t, testsupport.WithHistory())
	testsupport.WriteFragments(t, env.cfg.Paths.VideoRoot, "a.f137", "a.f251")
	if _, _, err := runCLI(t, []string{"reconcile", "--quiet"}, env.configPath); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	out, _, err = runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Completed")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Video root:")
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "History:")
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.VideoRoot)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected config init to refuse overwriting")
	}
}

func TestInvalidConfigIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[fragments]\nvideo_suffix = \"f251\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"status"}, path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDisplayLabel(t *testing.T) {
	cases := map[string]string{"video_only": "Video Only", "merged": "Merged", "": "-"}
	for in, want := range cases {
		if got := displayLabel(in); got != want {
			t.Fatalf("displayLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
