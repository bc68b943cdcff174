package config

const (
	defaultConfigPath           = "~/.config/radiocap/config.toml"
	defaultDataDir              = "~/.local/share/radiocap"
	defaultRecordingsDir        = "~/.local/share/radiocap/recordings"
	defaultStagingDir           = "~/.local/share/radiocap/staging"
	defaultLogDir               = "~/.local/share/radiocap/logs"
	defaultCatalogPath          = "~/.config/radiocap/catalog.toml"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultTickSeconds          = 15
	defaultLookahead            = 2
	defaultMaxConcurrent        = 4
	defaultSlotWaitSeconds      = 30
	defaultGraceSeconds         = 60
	defaultPollSeconds          = 5
	defaultMinOutputBytes       = 16 * 1024
	defaultEarlyExitTolerance   = 90
	defaultMinAttemptSeconds    = 20
	defaultDurationMinutes      = 60
	defaultRetentionDays        = 30
	defaultStreamripperBinary   = "streamripper"
	defaultYtDlpBinary          = "yt-dlp"
	defaultFFmpegBinary         = "ffmpeg"
	defaultStaleAfterHours      = 168
	defaultProbeIntervalHours   = 24
	defaultProbeDurationSeconds = 10
	defaultProbeTimeoutSeconds  = 30
	defaultProbeMinBytes        = 4 * 1024
	defaultProbeConcurrency     = 2
	defaultProbePerMinute       = 30
	defaultReapIntervalMinutes  = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultAPITokenEnv          = "RADIOCAP_API_TOKEN"
	defaultCatalogPathEnv       = "RADIOCAP_CATALOG"
)

// DefaultFallbackOrder is the tool order attempted when the first choice fails.
var DefaultFallbackOrder = []string{"streamripper", "ffmpeg", "yt-dlp"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			RecordingsDir: defaultRecordingsDir,
			StagingDir:    defaultStagingDir,
			LogDir:        defaultLogDir,
			CatalogPath:   defaultCatalogPath,
			WatchCatalog:  true,
			APIBind:       defaultAPIBind,
		},
		Scheduler: Scheduler{
			TickSeconds: defaultTickSeconds,
			Lookahead:   defaultLookahead,
		},
		Capture: Capture{
			MaxConcurrent:             defaultMaxConcurrent,
			SlotWaitSeconds:           defaultSlotWaitSeconds,
			GraceSeconds:              defaultGraceSeconds,
			PollSeconds:               defaultPollSeconds,
			MinOutputBytes:            defaultMinOutputBytes,
			EarlyExitToleranceSeconds: defaultEarlyExitTolerance,
			MinAttemptSeconds:         defaultMinAttemptSeconds,
			FallbackOrder:             append([]string(nil), DefaultFallbackOrder...),
			DefaultDurationMinutes:    defaultDurationMinutes,
			DefaultRetentionDays:      defaultRetentionDays,
		},
		Tools: Tools{
			StreamripperBinary: defaultStreamripperBinary,
			YtDlpBinary:        defaultYtDlpBinary,
			FFmpegBinary:       defaultFFmpegBinary,
			StaleAfterHours:    defaultStaleAfterHours,
		},
		Probe: Probe{
			Enabled:         true,
			IntervalHours:   defaultProbeIntervalHours,
			DurationSeconds: defaultProbeDurationSeconds,
			TimeoutSeconds:  defaultProbeTimeoutSeconds,
			MinBytes:        defaultProbeMinBytes,
			Concurrency:     defaultProbeConcurrency,
			PerMinute:       defaultProbePerMinute,
		},
		Retention: Retention{
			Enabled:         true,
			IntervalMinutes: defaultReapIntervalMinutes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
