package scheduler

import (
	"context"
	"time"

	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	logx "payline/pkg/logx"
)

// CycleResult summarizes one pass over the pending collection.
type CycleResult struct {
	Pending   int // records seen
	Due       int // records executed this cycle
	Completed int
	Failed    int
}

// RunCycle performs one scheduler pass at time now:
//
//  1. load the pending collection
//  2. partition into due (pending, due_at <= now) and not due
//  3. execute each due record against the gateway, exactly one attempt,
//     bounded by the exec timeout; success -> completed, failure -> failed
//  4. commit terminal records: append to archive, drop from pending
//  5. skip all writes when nothing became terminal
//
// A commit failure is returned to the caller; the loop logs it and the next
// cycle recomputes the same transitions from the untouched pending state.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (CycleResult, error) {
	var res CycleResult

	pending, err := s.store.LoadPending(ctx)
	if err != nil {
		return res, err
	}
	res.Pending = len(pending)

	var terminal []ledger.Action
	for i := range pending {
		a := pending[i]
		if !a.Due(now) {
			continue
		}
		res.Due++

		done := s.executeDue(ctx, a)
		terminal = append(terminal, done)
		if done.Status == ledger.StatusCompleted {
			res.Completed++
		} else {
			res.Failed++
		}
	}

	if len(terminal) > 0 {
		if err := s.store.ArchiveTerminal(ctx, terminal); err != nil {
			s.noteCycle(res, err)
			return res, err
		}
		for _, a := range terminal {
			s.publishTerminal(a)
		}
	}

	s.noteCycle(res, nil)
	if res.Due > 0 {
		s.log.Info("cycle completed",
			logx.Int("pending", res.Pending),
			logx.Int("due", res.Due),
			logx.Int("completed", res.Completed),
			logx.Int("failed", res.Failed))
	} else {
		s.log.Debug("cycle completed; nothing due", logx.Int("pending", res.Pending))
	}
	return res, nil
}

// executeDue makes exactly one gateway attempt for a due action and returns
// the terminal record. Failures, including timeouts, are data on the record;
// nothing is retried and nothing propagates as a fault.
func (s *Service) executeDue(ctx context.Context, a ledger.Action) ledger.Action {
	execCtx, cancel := context.WithTimeout(ctx, s.execTimeout())
	rcpt, err := s.exec.Execute(execCtx, gateway.Payment{
		Credential:  a.Credential,
		Destination: a.Destination,
		Amount:      a.Amount,
	})
	cancel()

	now := time.Now()
	if err != nil {
		a.MarkFailed(err.Error(), now)
		s.log.Warn("scheduled send failed",
			logx.String("id", a.ID),
			logx.String("dest", a.Destination),
			logx.String("amount", a.Amount.String()),
			logx.Err(err))
		return a
	}

	a.MarkCompleted(rcpt.TransactionID, rcpt.ConfirmationLink, now)
	s.log.Info("scheduled send completed",
		logx.String("id", a.ID),
		logx.String("dest", a.Destination),
		logx.String("amount", a.Amount.String()),
		logx.String("tx", rcpt.TransactionID))
	return a
}

func (s *Service) publishTerminal(a ledger.Action) {
	if s.bus == nil {
		return
	}
	typ := eventbus.TypeActionCompleted
	if a.Status == ledger.StatusFailed {
		typ = eventbus.TypeActionFailed
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: a.ID})
}

func (s *Service) noteCycle(res CycleResult, err error) {
	s.mu.Lock()
	s.cycles++
	s.completed += uint64(res.Completed)
	s.failed += uint64(res.Failed)
	s.lastCycle = time.Now()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleCompleted, Data: res})
	}
}
