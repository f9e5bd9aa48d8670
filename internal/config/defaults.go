package config

const (
	defaultRoot              = "~/.local/share/wavbatch"
	defaultLedgerName        = "wav_file_manager.db"
	reportFileName           = "SourceFile_Report.xlsx"
	defaultRemotePort        = 22
	defaultRemoteRoot        = "/"
	defaultRemoteExtension   = ".wav"
	defaultRemoteTimeout     = 30
	defaultFormat            = "mp3"
	defaultChunkSeconds      = 10
	defaultFFmpegBinary      = "ffmpeg"
	defaultBitrate           = "192k"
	defaultSettleDelayMillis = 1000
	defaultRetentionHours    = 24
	defaultMailPort          = 465
	defaultMailSubject       = "Daily Status Report"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults. Stage
// directories left empty are derived from Paths.Root during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			Root: defaultRoot,
		},
		Remote: Remote{
			Port:           defaultRemotePort,
			RootDir:        defaultRemoteRoot,
			Extension:      defaultRemoteExtension,
			TimeoutSeconds: defaultRemoteTimeout,
		},
		Conversion: Conversion{
			Format:       defaultFormat,
			ChunkSeconds: defaultChunkSeconds,
			FFmpegBinary: defaultFFmpegBinary,
			Bitrate:      defaultBitrate,
		},
		Lifecycle: Lifecycle{
			SettleDelayMillis: defaultSettleDelayMillis,
			RetentionHours:    defaultRetentionHours,
		},
		Mail: Mail{
			Port:      defaultMailPort,
			Subject:   defaultMailSubject,
			AttachLog: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
