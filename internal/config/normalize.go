package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvironment()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFragments()
	c.Muxer.Binary = strings.TrimSpace(c.Muxer.Binary)
	if c.Muxer.Binary == "" {
		c.Muxer.Binary = defaultMuxerBinary
	}
	c.normalizeLogging()
	return nil
}

// applyEnvironment honours the variables the scheduled container deployment
// sets. Environment values win over the file.
func (c *Config) applyEnvironment() {
	if value, ok := os.LookupEnv("VIDEO_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.VideoRoot = value
	}
	if value, ok := os.LookupEnv("FRAGMENT_DELETE_ORPHANS"); ok && strings.TrimSpace(value) != "" {
		c.Fragments.DeleteOrphans = strings.EqualFold(strings.TrimSpace(value), "true")
	}
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.VideoRoot = strings.TrimSpace(c.Paths.VideoRoot)
	if c.Paths.VideoRoot == "" {
		c.Paths.VideoRoot = defaultVideoRoot
	}
	if c.Paths.VideoRoot, err = expandPath(c.Paths.VideoRoot); err != nil {
		return fmt.Errorf("paths.video_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFragments() {
	c.Fragments.VideoSuffix = normalizeExtension(c.Fragments.VideoSuffix)
	c.Fragments.AudioSuffix = normalizeExtension(c.Fragments.AudioSuffix)
	c.Fragments.ContainerExtension = normalizeExtension(c.Fragments.ContainerExtension)
	if c.Fragments.ContainerExtension == "" {
		c.Fragments.ContainerExtension = defaultContainerExtension
	}
}

// normalizeExtension lowercases an extension and strips any leading dots.
func normalizeExtension(value string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(value), "."))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
