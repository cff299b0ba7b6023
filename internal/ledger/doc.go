package ledger

// Package ledger persists scheduled transfer actions.
//
// It holds two durable collections:
//   - pending: actions waiting for their due time
//   - archive: terminal (completed/failed) actions, append-only
