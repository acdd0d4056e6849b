package config

// Config is the root of the fragwatch configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "3h").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Tracker   TrackerConfig   `json:"tracker,omitempty"`
	Source    SourceConfig    `json:"source,omitempty"`
	Checker   CheckerConfig   `json:"checker,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Pprof     *PprofConfig    `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./fragwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type TrackerConfig struct {
	MaxTracked int `json:"max_tracked,omitempty"`
}

type SourceConfig struct {
	BaseURL   string `json:"base_url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// CheckerConfig maps to checker.Config; zero fields fall back to the
// checker's defaults.
type CheckerConfig struct {
	Concurrency    int    `json:"concurrency,omitempty"`
	PerCallTimeout string `json:"per_call_timeout,omitempty"`
	PaceMin        string `json:"pace_min,omitempty"`
	PaceMax        string `json:"pace_max,omitempty"`
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	BatchCap       int    `json:"batch_cap,omitempty"`
}

// SchedulerConfig controls the periodic notification loop.
//
// Schedule accepts a Go duration ("3h") or a 5-field cron expression.
type SchedulerConfig struct {
	Enabled     *bool  `json:"enabled,omitempty"` // nil means enabled
	Schedule    string `json:"schedule,omitempty"`
	TickTimeout string `json:"tick_timeout,omitempty"`
}

func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PprofConfig controls the optional profiling HTTP server. Disabled when
// the section is absent.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

type NotifierConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}
