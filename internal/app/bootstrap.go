package app

import (
	"time"

	"fragwatch/internal/checker"
	"fragwatch/internal/config"
	"fragwatch/internal/notifier"
	"fragwatch/internal/observability/pprof"
	"fragwatch/internal/scheduler"
	"fragwatch/internal/source/fragment"
	"fragwatch/internal/storage"
	"fragwatch/internal/tracker"
	logx "fragwatch/pkg/logx"
)

// Mapping from the file-level config to component configs. Durations come
// in as strings and are validated here so a bad value fails startup (or a
// hot reload) instead of surfacing mid-run.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = "./fragwatch.json"
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func mapSourceConfig(cfg *config.Config) (fragment.Config, error) {
	timeout, err := config.Duration("source.timeout", cfg.Source.Timeout, 0)
	if err != nil {
		return fragment.Config{}, err
	}
	return fragment.Config{
		BaseURL:   cfg.Source.BaseURL,
		Timeout:   timeout,
		UserAgent: cfg.Source.UserAgent,
	}, nil
}

func mapCheckerConfig(cfg *config.Config) (checker.Config, error) {
	perCall, err := config.Duration("checker.per_call_timeout", cfg.Checker.PerCallTimeout, 0)
	if err != nil {
		return checker.Config{}, err
	}
	paceMin, err := config.Duration("checker.pace_min", cfg.Checker.PaceMin, 0)
	if err != nil {
		return checker.Config{}, err
	}
	paceMax, err := config.Duration("checker.pace_max", cfg.Checker.PaceMax, 0)
	if err != nil {
		return checker.Config{}, err
	}
	return checker.Config{
		Concurrency:    cfg.Checker.Concurrency,
		PerCallTimeout: perCall,
		PaceMin:        paceMin,
		PaceMax:        paceMax,
		MaxAttempts:    cfg.Checker.MaxAttempts,
		BatchCap:       cfg.Checker.BatchCap,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config, batch checker.Config) (scheduler.Config, error) {
	tick, err := config.Duration("scheduler.tick_timeout", cfg.Scheduler.TickTimeout, 0)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Schedule:    cfg.Scheduler.Schedule,
		TickTimeout: tick,
		Batch:       batch,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg.Notifier == nil {
		return notifier.Config{}, nil
	}
	retryBase, err := config.Duration("notifier.retry_base", cfg.Notifier.RetryBase, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMax, err := config.Duration("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:       cfg.Notifier.Workers,
		QueueSize:     cfg.Notifier.QueueSize,
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMax,
	}, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	if cfg.Pprof == nil {
		return pprof.Config{}
	}
	return pprof.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		Token:   cfg.Pprof.Token,
	}
}

func mapTrackerConfig(cfg *config.Config) tracker.Config {
	return tracker.Config{MaxTracked: cfg.Tracker.MaxTracked}
}

// validateConfig rejects a config before it is committed on hot reload.
// Component mapping funcs double as validators.
func validateConfig(cfg *config.Config) error {
	if _, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSourceConfig(cfg); err != nil {
		return err
	}
	batch, err := mapCheckerConfig(cfg)
	if err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg, batch); err != nil {
		return err
	}
	if cfg.Scheduler.Schedule != "" {
		if _, err := scheduler.ParseSpec(cfg.Scheduler.Schedule); err != nil {
			return err
		}
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	return nil
}

func pollTimeout(cfg *config.Config) (time.Duration, error) {
	return config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
}
