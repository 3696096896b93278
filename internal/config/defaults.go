package config

const (
	defaultVideoRoot          = "/videos"
	defaultLogDir             = "~/.local/share/mvsync/logs"
	defaultStateDir           = "~/.local/share/mvsync"
	defaultVideoSuffix        = "f137"
	defaultAudioSuffix        = "f251"
	defaultContainerExtension = "mp4"
	defaultMuxerBinary        = "ffmpeg"
	defaultIntervalMinutes    = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideoRoot: defaultVideoRoot,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Fragments: Fragments{
			VideoSuffix:        defaultVideoSuffix,
			AudioSuffix:        defaultAudioSuffix,
			ContainerExtension: defaultContainerExtension,
			DeleteOrphans:      false,
		},
		Muxer: Muxer{
			Binary: defaultMuxerBinary,
		},
		Schedule: Schedule{
			IntervalMinutes: defaultIntervalMinutes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
