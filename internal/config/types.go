package config

// Config is the root of the payline config file (YAML or JSON).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Gateway   GatewayConfig   `json:"gateway"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8480"

	// RatePerSec / Burst throttle mutating requests. 0 disables throttling.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	Burst      int `json:"burst,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`

	// Console is a pointer so we can distinguish "omitted" (default true)
	// from an explicit false.
	Console *bool             `json:"console,omitempty"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the ledger driver.
//
// Driver values:
//   - "file" (default): two JSON documents, <path>.pending.json + <path>.archive.json
//   - "sqlite": SQLite database file
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig controls the deferred-send loop.
//
// The loop wakes either on a fixed Interval (default "60s") or, when PollSpec
// is set, on a cron schedule. PollSpec wins when both are present.
type SchedulerConfig struct {
	// Enabled is a pointer so we can distinguish "omitted" (default true)
	// from an explicit false.
	Enabled *bool `json:"enabled,omitempty"`

	Interval string `json:"interval,omitempty"`
	PollSpec string `json:"poll_spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// ExecTimeout bounds a single gateway call made by the loop.
	// Default "30s"; the loop must never hang forever on one unresponsive send.
	ExecTimeout string `json:"exec_timeout,omitempty"`
}

// GatewayConfig points at the external payment gateway.
type GatewayConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"` // HTTP round-trip bound, default "30s"

	// Network and ExplorerURL shape the confirmation link attached to receipts:
	// <explorer_url>/tx/<transaction-id>?cluster=<network>.
	Network     string `json:"network,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// PprofConfig controls the optional runtime-profiling listener.
// Binding to a non-loopback address requires Token.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:6060"
	Token   string `json:"token,omitempty"`
}

func (c *LoggingConfig) ConsoleEnabled() bool {
	if c == nil || c.Console == nil {
		return true
	}
	return *c.Console
}

func (c *SchedulerConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}
