package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payline/internal/dispatch"
	"payline/internal/ledger"
	logx "payline/pkg/logx"
)

// actionRequest is the wire shape of POST /v1/actions.
type actionRequest struct {
	Action      string           `json:"action"`
	Credential  string           `json:"credential,omitempty"`
	Alias       string           `json:"alias,omitempty"`
	Destination string           `json:"destination,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	DueAt       string           `json:"due_at,omitempty"` // RFC 3339
}

// SubmitAction accepts the generic {register|send|schedule} request shape and
// maps dispatcher errors onto HTTP statuses: validation -> 400, gateway
// rejection -> 502, storage trouble -> 500.
func (s *Server) SubmitAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dreq := dispatch.Request{
		Action:      req.Action,
		Credential:  req.Credential,
		Alias:       req.Alias,
		Destination: req.Destination,
		Amount:      req.Amount,
	}
	if strings.TrimSpace(req.DueAt) != "" {
		due, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_at must be RFC 3339: " + err.Error()})
			return
		}
		dreq.DueAt = &due
	}

	resp, err := s.dispatcher.Dispatch(c.Request.Context(), dreq)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case dispatch.IsValidation(err):
			status = http.StatusBadRequest
		case strings.EqualFold(strings.TrimSpace(req.Action), dispatch.KindSend):
			// Past validation, a send can only fail at the gateway.
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if resp.Scheduled {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// actionView is an Action without its credential; secrets never leave the
// process through read endpoints.
type actionView struct {
	ID               string          `json:"id"`
	Alias            string          `json:"alias,omitempty"`
	Destination      string          `json:"destination"`
	Amount           decimal.Decimal `json:"amount"`
	DueAt            time.Time       `json:"due_at"`
	CreatedAt        time.Time       `json:"created_at"`
	Status           ledger.Status   `json:"status"`
	ReceiptID        string          `json:"receipt_id,omitempty"`
	ConfirmationLink string          `json:"confirmation_link,omitempty"`
	Error            string          `json:"error,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
}

func toViews(actions []ledger.Action) []actionView {
	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionView{
			ID:               a.ID,
			Alias:            a.Alias,
			Destination:      a.Destination,
			Amount:           a.Amount,
			DueAt:            a.DueAt,
			CreatedAt:        a.CreatedAt,
			Status:           a.Status,
			ReceiptID:        a.ReceiptID,
			ConfirmationLink: a.ConfirmationLink,
			Error:            a.Error,
			CompletedAt:      a.CompletedAt,
			FailedAt:         a.FailedAt,
		})
	}
	return out
}

func (s *Server) ListPending(c *gin.Context) {
	actions, err := s.store.LoadPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": toViews(actions)})
}

func (s *Server) ListArchive(c *gin.Context) {
	actions, err := s.store.LoadArchive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": toViews(actions)})
}

func (s *Server) Status(c *gin.Context) {
	ctx := c.Request.Context()
	pending, _ := s.store.LoadPending(ctx)
	archive, _ := s.store.LoadArchive(ctx)

	resp := gin.H{
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"pending_count": len(pending),
		"archive_count": len(archive),
		"sessions":      s.sessions.Len(),
	}
	if s.sched != nil {
		resp["scheduler"] = s.sched.Snapshot()
	}
	if s.bus != nil {
		resp["events"] = s.bus.Counts()
	}
	c.JSON(http.StatusOK, resp)

	s.log.Debug("status served", logx.Int("pending", len(pending)), logx.Int("archive", len(archive)))
}
