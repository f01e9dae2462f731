package config

// DefaultThresholdKey names the fallback entry of thresholds_per_camera.
const DefaultThresholdKey = "default"

const (
	defaultStateDir             = "~/.local/share/tamperwatch"
	defaultLogDir               = "~/.local/share/tamperwatch/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultAPIBind              = "127.0.0.1:7489"
	defaultSampleStride         = 1
	defaultEmbedder             = EmbedderHaar
	defaultHaarBlock            = 16
	defaultEmbedderTimeout      = 30
	defaultNotifyRequestTimeout = 10
	defaultPollInterval         = 5
	defaultCatchKeepSeconds     = 30
	defaultHistoryRetentionDays = 30
	maxThreshold                = 2.0
	maxHaarBlock                = 128
)

// Embedder kinds accepted by detector.embedder.
const (
	EmbedderHaar = "haar"
	EmbedderHTTP = "http"
)

var defaultImageFormats = []string{".jpg", ".jpeg", ".png"}

// Default returns a Config populated with repository defaults. Watch folders,
// reference folders, and the default threshold have no defaults and must be
// supplied by the config file.
func Default() Config {
	return Config{
		ImageFormats: append([]string(nil), defaultImageFormats...),
		Catch: CatchParams{
			KeepSeconds: defaultCatchKeepSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Detector: Detector{
			SampleStride:    defaultSampleStride,
			Embedder:        defaultEmbedder,
			HaarBlock:       defaultHaarBlock,
			EmbedderTimeout: defaultEmbedderTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
