package muxer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"mvsync/internal/logging"
	"mvsync/internal/services"
)

// DefaultBinary is the muxer executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// maxOutputBytes bounds the captured tool output kept for logging.
const maxOutputBytes = 8 * 1024

// Result reports a single muxer invocation. ExitCode is -1 when the process
// could not be started.
type Result struct {
	ExitCode int
	Output   string
}

// commandRunner executes name with args and returns its exit code and combined
// stdout/stderr. A non-nil error means the process never ran to completion.
type commandRunner func(ctx context.Context, name string, args ...string) (int, []byte, error)

// Muxer joins a video-only and an audio-only fragment into one container by
// stream copy.
type Muxer struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// New constructs a muxer for the given binary. An empty binary falls back to
// ffmpeg on PATH.
func New(binary string, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &Muxer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "muxer"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (m *Muxer) WithCommandRunner(r commandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// Merge copies the first video stream of videoPath and the first audio stream
// of audioPath into outputPath, overwriting any existing file. It succeeds
// only when the tool exits zero and outputPath exists afterwards. Source
// fragments are never touched.
func (m *Muxer) Merge(ctx context.Context, videoPath, audioPath, outputPath string) (Result, error) {
	if m == nil {
		return Result{ExitCode: -1}, fmt.Errorf("muxer not initialized")
	}

	args := BuildArgs(videoPath, audioPath, outputPath)
	m.logger.Debug("executing muxer",
		logging.String("binary", m.binary),
		logging.String("args", strings.Join(args, " ")),
	)

	code, output, err := m.run(ctx, m.binary, args...)
	result := Result{ExitCode: code, Output: tail(output)}
	if err != nil {
		result.ExitCode = -1
		return result, services.Wrap(services.ErrExternalTool, "merge", "run muxer",
			fmt.Sprintf("%s could not be started", m.binary), err)
	}
	if code != 0 {
		return result, services.Wrap(services.ErrExternalTool, "merge", "run muxer",
			fmt.Sprintf("%s exited with status %d", m.binary, code), nil)
	}
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return result, services.Wrap(services.ErrExternalTool, "merge", "verify output",
			"muxer exited zero without producing output", statErr)
	}
	return result, nil
}

// BuildArgs returns the argument vector for a stream-copy merge.
func BuildArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		outputPath,
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err == nil {
		return 0, buf.Bytes(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), buf.Bytes(), nil
	}
	return -1, buf.Bytes(), err
}

// tail keeps the last maxOutputBytes of output, starting on a rune boundary.
func tail(output []byte) string {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) <= maxOutputBytes {
		return string(trimmed)
	}
	cut := len(trimmed) - maxOutputBytes
	for cut < len(trimmed) && !utf8.RuneStart(trimmed[cut]) {
		cut++
	}
	return "..." + string(trimmed[cut:])
}
