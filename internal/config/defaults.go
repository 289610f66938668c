package config

const (
	defaultConfigPath          = "~/.config/amequeue/config.toml"
	defaultLogDir              = "~/.local/share/amequeue/logs"
	defaultLogRetentionDays    = 30
	defaultAPIBind             = "127.0.0.1:7490"
	defaultGatewayHost         = "localhost"
	defaultGatewayPort         = 8080
	defaultSubmitRetries       = 10
	defaultSubmitRetryDelay    = 1
	defaultAbortRetries        = 3
	defaultAbortRetryDelay     = 1
	defaultPollInterval        = 1
	defaultErrorStateTimeout   = 15
	defaultIDFormat            = "uuid"
	defaultRetainFinished      = 100
	defaultShutdownGrace       = 30
	defaultCallbackBind        = ":8018"
	defaultNotifyRequestTimout = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Gateway: Gateway{
			Host: defaultGatewayHost,
			Port: defaultGatewayPort,
		},
		Job: Job{
			SubmitRetries:     defaultSubmitRetries,
			SubmitRetryDelay:  defaultSubmitRetryDelay,
			AbortRetries:      defaultAbortRetries,
			AbortRetryDelay:   defaultAbortRetryDelay,
			PollInterval:      defaultPollInterval,
			ErrorStateTimeout: defaultErrorStateTimeout,
		},
		Queue: Queue{
			IDFormat:        defaultIDFormat,
			RetainFinished:  defaultRetainFinished,
			AbortOnShutdown: true,
			ShutdownGrace:   defaultShutdownGrace,
		},
		Callback: Callback{
			Bind: defaultCallbackBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimout,
			JobSucceeded:   true,
			JobFailed:      true,
			JobAborted:     true,
			Queue:          true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
