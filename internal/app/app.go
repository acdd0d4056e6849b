// Package app wires the components together: config, logging, storage,
// tracker, checker, scheduler, notifier, and the Telegram surface.
package app

import (
	"context"
	"sync"
	"time"

	"fragwatch/internal/checker"
	"fragwatch/internal/config"
	"fragwatch/internal/notifier"
	"fragwatch/internal/observability/pprof"
	"fragwatch/internal/report"
	"fragwatch/internal/resultcache"
	"fragwatch/internal/scheduler"
	"fragwatch/internal/source/fragment"
	"fragwatch/internal/storage"
	"fragwatch/internal/tracker"
	kit "fragwatch/internal/transport"
	"fragwatch/internal/transport/telegram"
	logx "fragwatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter kit.Adapter

	core   *Core
	router *Router
	sched  *scheduler.Service
	notif  *notifier.Service
	pprof  *pprof.Service

	schedEnabled bool
	updates      chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetValidator(validateConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	poll, err := pollTimeout(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", storeCfg.Driver), logx.String("path", storeCfg.Path))

	trk := tracker.New(mapTrackerConfig(cfg), store, logSvc.Logger().With(logx.String("comp", "tracker")))

	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	factory := fragment.Factory{Cfg: srcCfg, Log: logSvc.Logger().With(logx.String("comp", "source"))}
	chk := checker.New(factory, logSvc.Logger().With(logx.String("comp", "checker")))
	cache := resultcache.New()

	batchCfg, err := mapCheckerConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	core := NewCore(trk, chk, cache, batchCfg, logSvc.Logger().With(logx.String("comp", "core")))
	router := NewRouter(RouterConfig{}, core, ad, logSvc.Logger())

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, ad, logSvc.Logger().With(logx.String("comp", "notifier")))

	schedCfg, err := mapSchedulerConfig(cfg, batchCfg)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	sched, err := scheduler.New(schedCfg, trk, chk, cache,
		func(ctx context.Context, userID int64, text string) error {
			return notif.Notify(kit.ChatTarget{ChatID: userID}, text, &kit.SendOptions{DisablePreview: true})
		},
		func(res checker.Result) string { return report.Format(res) },
		logSvc.Logger().With(logx.String("comp", "scheduler")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	pprofSvc := pprof.New(mapPprofConfig(cfg), logSvc.Logger().With(logx.String("comp", "pprof")))

	return &App{
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		store:        store,
		adapter:      ad,
		core:         core,
		router:       router,
		sched:        sched,
		notif:        notif,
		pprof:        pprofSvc,
		schedEnabled: cfg.Scheduler.IsEnabled(),
		updates:      make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	a.notif.Start(runCtx)

	if a.pprof.Enabled() {
		if err := a.pprof.Start(); err != nil {
			a.log.Warn("pprof not started", logx.Err(err))
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.router.Run(runCtx, a.updates)
	}()

	if a.schedEnabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sched.Run(runCtx)
		}()
	} else {
		a.log.Info("scheduler disabled by config")
	}

	if err := a.cfgm.Watch(runCtx); err != nil {
		a.log.Warn("config watch unavailable", logx.Err(err))
	} else {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.watchConfig(runCtx)
		}()
	}

	a.log.Info("started")
	return nil
}

// watchConfig applies the hot-reloadable subset of a committed reload.
// Everything else (token, storage driver, schedule) needs a restart.
func (a *App) watchConfig(ctx context.Context) {
	sub := a.cfgm.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logs.Apply(mapLoggingConfig(cfg))
			a.log.Info("logging config applied")
		}
	}
}

// Stop shuts the app down, waiting up to the ctx deadline for background
// loops to drain.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.adapter.Stop(ctx)
	a.notif.Stop()
	a.pprof.Stop()

	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out; background work abandoned")
	case <-time.After(10 * time.Second):
		a.log.Warn("shutdown timed out; background work abandoned")
	}

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
