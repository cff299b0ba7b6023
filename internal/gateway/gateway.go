// Package gateway wraps the external "submit a payment" call.
//
// The rest of the system treats it as an opaque collaborator: signer
// material, recipient and amount go in; a receipt or an error comes out.
// The scheduler invokes it at most once per due transition per cycle.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Payment is one transfer request.
type Payment struct {
	Credential  string
	Destination string
	Amount      decimal.Decimal
}

// Receipt is a normalized success result.
type Receipt struct {
	TransactionID    string
	ConfirmationLink string
}

// Executor submits a payment. Implementations may be non-idempotent network
// calls; callers own attempt accounting.
type Executor interface {
	Execute(ctx context.Context, p Payment) (*Receipt, error)
}

const (
	defaultExplorerURL = "https://explorer.payline.network"
	defaultNetwork     = "mainnet"
)

// ConfirmationLink renders the deterministic explorer URL for a transaction.
// Presentation only; nothing downstream parses it back.
func ConfirmationLink(explorerURL, network, transactionID string) string {
	if strings.TrimSpace(explorerURL) == "" {
		explorerURL = defaultExplorerURL
	}
	if strings.TrimSpace(network) == "" {
		network = defaultNetwork
	}
	return fmt.Sprintf("%s/tx/%s?cluster=%s", strings.TrimRight(explorerURL, "/"), transactionID, network)
}
