package app

import (
	"strings"
	"time"

	"payline/internal/config"
	"payline/internal/gateway"
	"payline/internal/ledger"
	"payline/internal/observability/pprof"
	"payline/internal/scheduler"
	"payline/internal/transport/httpapi"
	logx "payline/pkg/logx"
)

// Mapping helpers translate the on-disk config sections into the typed
// configs each service takes, with defaults filled in.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (ledger.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return ledger.Config{}, err
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = "./data/payline.json"
	}
	return ledger.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	interval, err := config.ParseDurationOrDefault("scheduler.interval", cfg.Scheduler.Interval, 60*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	execTimeout, err := config.ParseDurationOrDefault("scheduler.exec_timeout", cfg.Scheduler.ExecTimeout, 30*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:     cfg.Scheduler.IsEnabled(),
		Interval:    interval,
		PollSpec:    cfg.Scheduler.PollSpec,
		Timezone:    cfg.Scheduler.Timezone,
		ExecTimeout: execTimeout,
	}, nil
}

func mapGatewayConfig(cfg *config.Config) (gateway.Config, error) {
	timeout, err := config.ParseDurationOrDefault("gateway.timeout", cfg.Gateway.Timeout, 30*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		URL:         cfg.Gateway.URL,
		Timeout:     timeout,
		Network:     cfg.Gateway.Network,
		ExplorerURL: cfg.Gateway.ExplorerURL,
	}, nil
}

func mapServerConfig(cfg *config.Config) (httpapi.Config, error) {
	readTimeout, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	writeTimeout, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         cfg.Server.Addr,
		RatePerSec:   cfg.Server.RatePerSec,
		Burst:        cfg.Server.Burst,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		Token:   cfg.Pprof.Token,
	}
}

func driverName(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return "file"
	}
	return d
}
