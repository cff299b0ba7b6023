package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a scheduled action. Transitions are one-way:
// pending -> completed or pending -> failed, never back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Action is a deferred funds transfer.
//
// The credential is a snapshot resolved at enqueue time, so the action stays
// executable even if the session table is overwritten or lost to a restart.
type Action struct {
	ID          string          `json:"id"`
	Alias       string          `json:"alias,omitempty"`
	Credential  string          `json:"credential"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
	DueAt       time.Time       `json:"due_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Status      Status          `json:"status"`

	// Terminal result fields.
	ReceiptID        string     `json:"receipt_id,omitempty"`
	ConfirmationLink string     `json:"confirmation_link,omitempty"`
	Error            string     `json:"error,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
}

// NewAction builds a pending action with a fresh ID.
func NewAction(alias, credential, destination string, amount decimal.Decimal, dueAt time.Time) Action {
	return Action{
		ID:          "act_" + uuid.New().String(),
		Alias:       alias,
		Credential:  credential,
		Destination: destination,
		Amount:      amount,
		DueAt:       dueAt,
		CreatedAt:   time.Now().UTC(),
		Status:      StatusPending,
	}
}

// Due reports whether the action should be executed at time now.
func (a Action) Due(now time.Time) bool {
	return a.Status == StatusPending && !a.DueAt.After(now)
}

// Terminal reports whether the action reached a final state.
func (a Action) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// MarkCompleted freezes the action at completed with its receipt.
func (a *Action) MarkCompleted(receiptID, confirmationLink string, at time.Time) {
	at = at.UTC()
	a.Status = StatusCompleted
	a.ReceiptID = receiptID
	a.ConfirmationLink = confirmationLink
	a.CompletedAt = &at
}

// MarkFailed freezes the action at failed. A failed send is terminal and is
// never retried.
func (a *Action) MarkFailed(message string, at time.Time) {
	at = at.UTC()
	a.Status = StatusFailed
	a.Error = message
	a.FailedAt = &at
}
