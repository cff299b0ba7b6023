// Package app assembles payline: config, logging, stores, the dispatcher,
// the scheduler loop and the HTTP API.
package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"payline/internal/config"
	"payline/internal/dispatch"
	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	"payline/internal/observability/pprof"
	"payline/internal/scheduler"
	"payline/internal/session"
	"payline/internal/transport/httpapi"
	logx "payline/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	sessions *session.Store
	store    ledger.Store
	exec     gateway.Executor

	dispatcher *dispatch.Dispatcher
	sched      *scheduler.Service
	server     *httpapi.Server
	prof       *pprof.Service

	cancelWatch context.CancelFunc
	cfgUpdates  chan *config.Config
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	bus := eventbus.New()
	sessions := session.NewStore()

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "ledger")))
	if err != nil {
		return nil, err
	}
	log.Info("ledger opened", logx.String("driver", driverName(storeCfg.Driver)), logx.String("path", storeCfg.Path))

	gwCfg, err := mapGatewayConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	exec, err := gateway.NewHTTPClient(gwCfg, logSvc.Logger().With(logx.String("comp", "gateway")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dispatcher := dispatch.New(sessions, store, exec, bus, logSvc.Logger())

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, store, exec, bus, logSvc.Logger())

	var server *httpapi.Server
	if cfg.Server.Enabled {
		srvCfg, err := mapServerConfig(cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		server = httpapi.NewServer(srvCfg, dispatcher, store, sessions, sched, bus, logSvc.Logger())
	}

	prof := pprof.New(mapPprofConfig(cfg), logSvc.Logger())

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		bus:        bus,
		sessions:   sessions,
		store:      store,
		exec:       exec,
		dispatcher: dispatcher,
		sched:      sched,
		server:     server,
		prof:       prof,
	}, nil
}

// Dispatcher exposes the request entry point for embedding callers.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

func (a *App) Start(ctx context.Context) error {
	if a.sched.Enabled() {
		a.sched.Start(ctx)
	} else {
		a.log.Info("scheduler disabled by config")
	}
	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return err
		}
	}
	if a.prof.Enabled() {
		if err := a.prof.Start(); err != nil {
			a.log.Warn("pprof start failed", logx.Err(err))
		}
	}

	// Hot reload: watch the config file and apply updates to the running
	// services. Storage and gateway changes need a restart.
	watchCtx, cancel := context.WithCancel(ctx)
	a.cancelWatch = cancel
	a.cfgUpdates = a.cfgm.Subscribe(4)
	go func() {
		if err := a.cfgm.Watch(watchCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go a.applyUpdates(watchCtx)

	// Tell systemd we're up; harmless no-op outside a unit.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

func (a *App) applyUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgUpdates:
			if !ok {
				return
			}
			if cfg == nil {
				continue
			}
			a.logs.Apply(mapLoggingConfig(cfg))

			schedCfg, err := mapSchedulerConfig(cfg)
			if err != nil {
				a.log.Warn("scheduler config rejected", logx.Err(err))
				continue
			}
			wasEnabled := a.sched.Enabled()
			a.sched.Apply(schedCfg)
			switch {
			case schedCfg.Enabled && !wasEnabled:
				a.sched.Start(ctx)
			case !schedCfg.Enabled && wasEnabled:
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				a.sched.Stop(stopCtx)
				cancel()
			}
			a.log.Info("config update applied")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	if a.cfgUpdates != nil {
		a.cfgm.Unsubscribe(a.cfgUpdates)
		a.cfgUpdates = nil
	}

	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.log.Warn("http shutdown failed", logx.Err(err))
		}
	}
	if err := a.prof.Stop(ctx); err != nil {
		a.log.Warn("pprof shutdown failed", logx.Err(err))
	}
	a.sched.Stop(ctx)

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
