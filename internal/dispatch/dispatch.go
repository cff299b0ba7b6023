// Package dispatch is the single entry point for client requests.
//
// It validates a request, resolves signer credentials, and either executes a
// transfer immediately or enqueues it for the scheduler.
package dispatch

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"payline/internal/eventbus"
	"payline/internal/gateway"
	"payline/internal/ledger"
	"payline/internal/session"
	logx "payline/pkg/logx"
)

// Request kinds.
const (
	KindRegister = "register"
	KindSend     = "send"
	KindSchedule = "schedule"
)

// Request is the boundary input shape shared by all transports.
type Request struct {
	Action      string           `json:"action"`
	Credential  string           `json:"credential,omitempty"`
	Alias       string           `json:"alias,omitempty"`
	Destination string           `json:"destination,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	DueAt       *time.Time       `json:"due_at,omitempty"`
}

// Response covers all three request kinds; unused fields stay empty.
type Response struct {
	Message          string `json:"message,omitempty"`
	ReceiptID        string `json:"receipt_id,omitempty"`
	ConfirmationLink string `json:"confirmation_link,omitempty"`
	Scheduled        bool   `json:"scheduled,omitempty"`
	ActionID         string `json:"action_id,omitempty"`
}

type Dispatcher struct {
	sessions *session.Store
	store    ledger.Store
	exec     gateway.Executor
	bus      eventbus.Bus
	log      logx.Logger
}

func New(sessions *session.Store, store ledger.Store, exec gateway.Executor, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		sessions: sessions,
		store:    store,
		exec:     exec,
		bus:      bus,
		log:      log.With(logx.String("comp", "dispatch")),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Response, error) {
	action := strings.ToLower(strings.TrimSpace(req.Action))
	switch action {
	case "":
		return nil, ErrMissingAction
	case KindRegister:
		return d.register(req)
	case KindSend:
		return d.send(ctx, req)
	case KindSchedule:
		return d.schedule(ctx, req)
	default:
		return nil, ErrInvalidAction
	}
}

func (d *Dispatcher) register(req Request) (*Response, error) {
	alias := strings.TrimSpace(req.Alias)
	if alias == "" || strings.TrimSpace(req.Credential) == "" {
		return nil, ErrMissingRegistrationFields
	}
	d.sessions.Register(alias, req.Credential)
	d.log.Info("alias registered", logx.String("alias", alias))
	return &Response{Message: "registered alias " + alias}, nil
}

func (d *Dispatcher) send(ctx context.Context, req Request) (*Response, error) {
	cred, err := d.resolveCredential(req)
	if err != nil {
		return nil, err
	}
	dest, amount, err := transferFields(req)
	if err != nil {
		return nil, err
	}

	rcpt, err := d.exec.Execute(ctx, gateway.Payment{
		Credential:  cred,
		Destination: dest,
		Amount:      amount,
	})
	if err != nil {
		// The gateway's message goes back verbatim, not a generic fault.
		d.log.Warn("immediate send failed", logx.String("dest", dest), logx.Err(err))
		return nil, err
	}

	d.log.Info("immediate send completed",
		logx.String("dest", dest),
		logx.String("amount", amount.String()),
		logx.String("tx", rcpt.TransactionID))
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: eventbus.TypeActionSent, Data: rcpt.TransactionID})
	}
	return &Response{
		ReceiptID:        rcpt.TransactionID,
		ConfirmationLink: rcpt.ConfirmationLink,
	}, nil
}

func (d *Dispatcher) schedule(ctx context.Context, req Request) (*Response, error) {
	cred, err := d.resolveCredential(req)
	if err != nil {
		return nil, err
	}
	dest, amount, err := transferFields(req)
	if err != nil {
		return nil, err
	}
	if req.DueAt == nil || req.DueAt.IsZero() {
		return nil, ErrMissingTransferFields
	}

	// A past due time still gets enqueued; deciding what is "due" belongs to
	// the scheduler loop, not here.
	a := ledger.NewAction(strings.TrimSpace(req.Alias), cred, dest, amount, req.DueAt.UTC())
	if err := d.store.AppendPending(ctx, a); err != nil {
		return nil, pkgerrors.Wrap(err, "enqueue scheduled transfer")
	}

	d.log.Info("transfer scheduled",
		logx.String("id", a.ID),
		logx.String("dest", dest),
		logx.String("amount", amount.String()),
		logx.Time("due_at", a.DueAt))
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: eventbus.TypeActionScheduled, Data: a.ID})
	}
	return &Response{
		Scheduled: true,
		ActionID:  a.ID,
		Message:   "transfer of " + amount.String() + " to " + dest + " scheduled for " + a.DueAt.Format(time.RFC3339),
	}, nil
}

// resolveCredential picks the signer credential for send/schedule.
//
// A direct credential wins over an alias lookup. When a direct credential
// arrives together with a not-yet-registered alias, the pair is registered as
// a side effect so future alias-only requests succeed.
func (d *Dispatcher) resolveCredential(req Request) (string, error) {
	cred := strings.TrimSpace(req.Credential)
	alias := strings.TrimSpace(req.Alias)

	if cred != "" {
		if alias != "" {
			if _, ok := d.sessions.Resolve(alias); !ok {
				d.sessions.Register(alias, req.Credential)
				d.log.Debug("alias registered on first use", logx.String("alias", alias))
			}
		}
		return req.Credential, nil
	}
	if alias != "" {
		if stored, ok := d.sessions.Resolve(alias); ok {
			return stored, nil
		}
	}
	return "", ErrUnresolvableCredential
}

func transferFields(req Request) (string, decimal.Decimal, error) {
	dest := strings.TrimSpace(req.Destination)
	if dest == "" || req.Amount == nil || !req.Amount.IsPositive() {
		return "", decimal.Decimal{}, ErrMissingTransferFields
	}
	return dest, *req.Amount, nil
}
