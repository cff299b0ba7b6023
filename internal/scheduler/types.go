package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	logx "payline/pkg/logx"
)

// Config controls the deferred-send loop.
type Config struct {
	Enabled bool

	// Interval between poll cycles. Default 60s.
	Interval time.Duration

	// PollSpec is an optional cron expression for the poll trigger.
	// When set it wins over Interval.
	PollSpec string
	Timezone string

	// ExecTimeout bounds one gateway call. Default 30s. The loop must never
	// hang forever on a single unresponsive send.
	ExecTimeout time.Duration
}

const (
	defaultInterval    = 60 * time.Second
	defaultExecTimeout = 30 * time.Second
)

// Service owns the background loop that executes due transfers.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log   logx.Logger
	store ledger.Store
	exec  gateway.Executor
	bus   eventbus.Bus

	parser cron.Parser

	// lifecycle; guarded by mu
	stopCh    chan struct{}
	stopDone  chan struct{}
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	// stats; guarded by mu
	cycles    uint64
	completed uint64
	failed    uint64
	lastCycle time.Time
	lastErr   string
}

// Snapshot is a point-in-time view for the status endpoint.
type Snapshot struct {
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	Interval  string    `json:"interval"`
	PollSpec  string    `json:"poll_spec,omitempty"`
	Cycles    uint64    `json:"cycles"`
	Completed uint64    `json:"completed"`
	Failed    uint64    `json:"failed"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}
