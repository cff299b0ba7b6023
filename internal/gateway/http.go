package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	logx "payline/pkg/logx"
)

// Config configures the HTTP gateway client.
type Config struct {
	URL     string
	Timeout time.Duration // HTTP round-trip bound; 0 means 30s

	Network     string
	ExplorerURL string
}

// HTTPClient posts transfers to a JSON payment gateway.
//
// Wire shape:
//
//	request:  {"credential": "...", "destination": "...", "amount": "0.2"}
//	success:  200 {"transaction_id": "..."}
//	failure:  any status with {"error": "..."}
type HTTPClient struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func NewHTTPClient(cfg Config, log logx.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, pkgerrors.New("gateway.url is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

type wireRequest struct {
	Credential  string `json:"credential"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type wireResponse struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

func (c *HTTPClient) Execute(ctx context.Context, p Payment) (*Receipt, error) {
	body, err := json.Marshal(wireRequest{
		Credential:  p.Credential,
		Destination: p.Destination,
		Amount:      p.Amount.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode payment")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read gateway response")
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil && len(raw) > 0 {
		wr = wireResponse{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || wr.Error != "" {
		msg := strings.TrimSpace(wr.Error)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = "gateway returned status " + resp.Status
		}
		c.log.Debug("gateway send rejected",
			logx.Int("status", resp.StatusCode),
			logx.Duration("took", time.Since(start)))
		// The gateway's own message travels verbatim to callers and records.
		return nil, pkgerrors.New(msg)
	}

	if strings.TrimSpace(wr.TransactionID) == "" {
		return nil, pkgerrors.New("gateway response missing transaction_id")
	}

	c.log.Debug("gateway send accepted",
		logx.String("tx", wr.TransactionID),
		logx.Duration("took", time.Since(start)))

	return &Receipt{
		TransactionID:    wr.TransactionID,
		ConfirmationLink: ConfirmationLink(c.cfg.ExplorerURL, c.cfg.Network, wr.TransactionID),
	}, nil
}
