package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrDeletion      = errors.New("deletion error")
	ErrLocked        = errors.New("run already active")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		return wrapUnmarked(detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func wrapUnmarked(detail string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	return errors.New(detail)
}

// IsFatal reports whether err must abort the whole run. Only configuration
// failures qualify; merge and deletion failures stay scoped to their item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
