package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "payline/pkg/logx"
)

var ErrClosed = errors.New("ledger store closed")

// Store is the durable home of scheduled actions.
//
// Two logical collections: pending (mutable, full-replace semantics) and
// archive (append-only, terminal records). Every load/modify/save sequence a
// driver performs is one critical section, so the dispatcher's enqueue path
// and the scheduler's sweep never lose each other's updates.
//
// Read failures (missing or unreadable data) yield an empty collection, never
// an error; write failures surface to the caller.
type Store interface {
	LoadPending(ctx context.Context) ([]Action, error)
	// SavePending replaces the pending collection in full.
	SavePending(ctx context.Context, actions []Action) error
	// AppendPending adds one action to the pending collection atomically.
	AppendPending(ctx context.Context, a Action) error

	LoadArchive(ctx context.Context) ([]Action, error)
	// AppendArchive adds terminal records, preserving prior archive entries.
	AppendArchive(ctx context.Context, actions []Action) error

	// ArchiveTerminal commits a scheduler cycle in one critical section:
	// the terminal records are appended to the archive and removed from the
	// pending collection by ID. Removal by ID keeps actions enqueued while
	// the cycle was executing.
	ArchiveTerminal(ctx context.Context, terminal []Action) error

	Close() error
}

// Config configures the ledger store.
//
// Driver values:
//   - "file" (default): dependency-free JSON documents
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
