package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"

	logx "payline/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pending_actions (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	id   TEXT NOT NULL UNIQUE,
	body TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS archived_actions (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	id   TEXT NOT NULL,
	body TEXT NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, pkgerrors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "migrate ledger schema")
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadPending(ctx context.Context) ([]Action, error) {
	return s.loadTable(ctx, "pending_actions")
}

func (s *sqliteStore) LoadArchive(ctx context.Context) ([]Action, error) {
	return s.loadTable(ctx, "archived_actions")
}

func (s *sqliteStore) loadTable(ctx context.Context, table string) ([]Action, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, "SELECT body FROM "+table+" ORDER BY seq")
	if err != nil {
		// Read failures count as empty; the caller never fails on a load.
		s.log.Warn("ledger query failed; treating as empty", logx.String("table", table), logx.Err(err))
		return []Action{}, nil
	}
	defer rows.Close()

	out := []Action{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			s.log.Warn("ledger row scan failed; skipping", logx.String("table", table), logx.Err(err))
			continue
		}
		var a Action
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			s.log.Warn("ledger row decode failed; skipping", logx.String("table", table), logx.Err(err))
			continue
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("ledger row iteration failed", logx.String("table", table), logx.Err(err))
	}
	return out, nil
}

func (s *sqliteStore) SavePending(ctx context.Context, actions []Action) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin save pending")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_actions"); err != nil {
		return pkgerrors.Wrap(err, "clear pending")
	}
	for _, a := range actions {
		if err := insertAction(ctx, tx, "pending_actions", a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendPending(ctx context.Context, a Action) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	body, err := json.Marshal(a)
	if err != nil {
		return pkgerrors.Wrap(err, "encode action")
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO pending_actions(id, body) VALUES(?, ?)", a.ID, string(body))
	return pkgerrors.Wrap(err, "append pending")
}

func (s *sqliteStore) AppendArchive(ctx context.Context, actions []Action) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if len(actions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin append archive")
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range actions {
		if err := insertAction(ctx, tx, "archived_actions", a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) ArchiveTerminal(ctx context.Context, terminal []Action) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if len(terminal) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin archive terminal")
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range terminal {
		if err := insertAction(ctx, tx, "archived_actions", a); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_actions WHERE id = ?", a.ID); err != nil {
			return pkgerrors.Wrap(err, "remove pending")
		}
	}
	return tx.Commit()
}

func insertAction(ctx context.Context, tx *sql.Tx, table string, a Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return pkgerrors.Wrap(err, "encode action")
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+table+"(id, body) VALUES(?, ?)", a.ID, string(body))
	return pkgerrors.Wrapf(err, "insert into %s", table)
}
