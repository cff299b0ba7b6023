package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"

	logx "payline/pkg/logx"
)

// fileStore persists both collections as whole JSON array documents:
//
//	<prefix>.pending.json
//	<prefix>.archive.json
//
// Writes go to a temp file in the same directory followed by os.Rename, so a
// crash mid-write never leaves a torn document visible.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	pendingPath string
	archivePath string
	closed      bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, pkgerrors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(err, "create storage dir")
	}

	return &fileStore{
		log:         log,
		pendingPath: prefix + ".pending.json",
		archivePath: prefix + ".archive.json",
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) LoadPending(ctx context.Context) ([]Action, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.readLocked(s.pendingPath), nil
}

func (s *fileStore) SavePending(ctx context.Context, actions []Action) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.writeLocked(s.pendingPath, actions)
}

func (s *fileStore) AppendPending(ctx context.Context, a Action) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cur := s.readLocked(s.pendingPath)
	cur = append(cur, a)
	return s.writeLocked(s.pendingPath, cur)
}

func (s *fileStore) LoadArchive(ctx context.Context) ([]Action, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.readLocked(s.archivePath), nil
}

func (s *fileStore) AppendArchive(ctx context.Context, actions []Action) error {
	_ = ctx
	if len(actions) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.appendArchiveLocked(actions)
}

func (s *fileStore) ArchiveTerminal(ctx context.Context, terminal []Action) error {
	_ = ctx
	if len(terminal) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	done := make(map[string]struct{}, len(terminal))
	for _, a := range terminal {
		done[a.ID] = struct{}{}
	}

	cur := s.readLocked(s.pendingPath)
	keep := cur[:0]
	for _, a := range cur {
		if _, ok := done[a.ID]; !ok {
			keep = append(keep, a)
		}
	}

	// Archive first: a crash between the two writes re-runs the action on the
	// next cycle instead of losing it (at-least-once).
	if err := s.appendArchiveLocked(terminal); err != nil {
		return err
	}
	return s.writeLocked(s.pendingPath, keep)
}

func (s *fileStore) appendArchiveLocked(actions []Action) error {
	cur := s.readLocked(s.archivePath)
	cur = append(cur, actions...)
	return s.writeLocked(s.archivePath, cur)
}

// readLocked loads a collection. Missing or unreadable files count as empty:
// losing a read must never fail the caller.
func (s *fileStore) readLocked(path string) []Action {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("ledger read failed; treating as empty", logx.String("path", path), logx.Err(err))
		}
		return []Action{}
	}
	var out []Action
	if err := json.Unmarshal(b, &out); err != nil {
		s.log.Warn("ledger decode failed; treating as empty", logx.String("path", path), logx.Err(err))
		return []Action{}
	}
	return out
}

func (s *fileStore) writeLocked(path string, actions []Action) error {
	if actions == nil {
		actions = []Action{}
	}
	b, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "encode ledger")
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return pkgerrors.Wrap(err, "open temp ledger file")
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return pkgerrors.Wrap(err, "write ledger")
	}
	if err := f.Close(); err != nil {
		return pkgerrors.Wrap(err, "close ledger")
	}
	if err := os.Rename(tmp, path); err != nil {
		return pkgerrors.Wrap(err, "replace ledger")
	}
	return nil
}
