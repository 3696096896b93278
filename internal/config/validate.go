package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFragments(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFragments() error {
	video := c.Fragments.VideoSuffix
	audio := c.Fragments.AudioSuffix
	container := c.Fragments.ContainerExtension
	if video == "" {
		return errors.New("fragments.video_suffix must be set")
	}
	if audio == "" {
		return errors.New("fragments.audio_suffix must be set")
	}
	for key, value := range map[string]string{
		"fragments.video_suffix":        video,
		"fragments.audio_suffix":        audio,
		"fragments.container_extension": container,
	} {
		if strings.ContainsAny(value, `./\`) {
			return fmt.Errorf("%s must be a bare extension, got %q", key, value)
		}
	}
	if strings.EqualFold(video, audio) {
		return fmt.Errorf("fragments.video_suffix and fragments.audio_suffix must differ (both %q)", video)
	}
	if strings.EqualFold(container, video) || strings.EqualFold(container, audio) {
		return fmt.Errorf("fragments.container_extension %q must differ from the fragment suffixes", container)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.IntervalMinutes <= 0 {
		return errors.New("schedule.interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
