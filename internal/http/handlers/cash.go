package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/services"

	"github.com/gin-gonic/gin"
)

type collectCashRequest struct {
	Amount       int64  `json:"amount"`
	PartySize    int    `json:"party_size"`
	Counterparty string `json:"counterparty"`
	FromStop     int    `json:"from_stop"`
	ToStop       int    `json:"to_stop"`
}

type settleRequest struct {
	Person string `json:"person"`
	Action string `json:"action"`
	Amount int64  `json:"amount"`
	Via    string `json:"via"`
}

func (a *API) CollectCash(c *gin.Context) {
	var req collectCashRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	snap, err := a.Core.CollectCash(c.Request.Context(), services.CashInput{
		Amount:       req.Amount,
		PartySize:    req.PartySize,
		Counterparty: req.Counterparty,
		FromStop:     req.FromStop,
		ToStop:       req.ToStop,
	})
	a.respondSnapshot(c, snap, err)
}

func (a *API) Settle(c *gin.Context) {
	var req settleRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	action, err := domain.ParseSettlementAction(req.Action)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	snap, err := a.Core.Settle(c.Request.Context(), req.Person, action, req.Amount, req.Via)
	a.respondSnapshot(c, snap, err)
}

func (a *API) Balance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"balance": a.Core.Balance()})
}

// History lists ledger lines, filtered by ?period (all, today, yesterday, week, month), ?method, ?kind, ?trip_id.
func (a *API) History(c *gin.Context) {
	period, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	method, err := domain.ParsePaymentMethod(c.Query("method"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	kind, err := domain.ParseTransactionKind(c.Query("kind"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	txs := a.Core.History(models.HistoryFilter{
		Period: period,
		Method: method,
		Kind:   kind,
		TripID: strings.TrimSpace(c.Query("trip_id")),
	})
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": total})
}

func (a *API) Income(c *gin.Context) {
	period, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "income": a.Core.Income(period)})
}

// LedgerJournal reads the persisted ledger journal, newest last.
func (a *API) LedgerJournal(c *gin.Context) {
	if a.Journal == nil {
		respondError(c, http.StatusServiceUnavailable, "no_journal", "journal not configured", nil)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondDomainError(c, domain.ValidationError{Field: "limit", Msg: "must be a positive integer"})
			return
		}
		limit = n
	}
	txs, err := a.Journal.List(c.Request.Context(), strings.TrimSpace(c.Query("trip_id")), limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
