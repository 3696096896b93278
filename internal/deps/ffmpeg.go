package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds the `-version` probe.
const versionTimeout = 5 * time.Second

// MuxerRequirement describes the ffmpeg binary used for stream-copy merges.
func MuxerRequirement(binary string) Requirement {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Required for merging video and audio fragments",
	}
}

// CheckMuxer resolves the muxer binary and, when present, records its version
// banner in Detail.
func CheckMuxer(ctx context.Context, binary string) Status {
	status := CheckBinaries([]Requirement{MuxerRequirement(binary)})[0]
	if !status.Available {
		return status
	}
	version, err := ProbeVersion(ctx, status.Path)
	if err != nil {
		status.Detail = fmt.Sprintf("version probe failed: %v", err)
		return status
	}
	status.Detail = version
	return status
}

// ProbeVersion returns the first line printed by `<binary> -version`.
func ProbeVersion(ctx context.Context, binary string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", fmt.Errorf("%s -version printed nothing", binary)
}
