package services

import (
	"context"
	"strings"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"

	"github.com/google/uuid"
)

// TransactionJournal mirrors ledger lines to durable storage.
type TransactionJournal interface {
	Append(ctx context.Context, tx models.Transaction) error
}

// Ledger is the driver's append-only transaction log. Balance is always the sum
// of the log.
type Ledger struct {
	Journal TransactionJournal
	Now     func() time.Time

	txs     []models.Transaction
	balance int64
}

func NewLedger(journal TransactionJournal, now func() time.Time) *Ledger {
	if now == nil {
		now = utils.NowUTC
	}
	return &Ledger{Journal: journal, Now: now}
}

// Record appends a transaction. Amount is signed; zero amounts are rejected.
func (l *Ledger) Record(ctx context.Context, kind domain.TransactionKind, amount int64, counterparty string, method domain.PaymentMethod, tripID string) (models.Transaction, error) {
	return l.append(ctx, models.Transaction{
		Kind:          kind,
		Amount:        amount,
		Counterparty:  utils.NormalizeSpace(counterparty),
		PaymentMethod: method,
		TripID:        tripID,
	})
}

// Settle records a driver/dispatcher settlement. Debits reduce the balance.
func (l *Ledger) Settle(ctx context.Context, person string, action domain.SettlementAction, amount int64, via string, tripID string) (models.Transaction, error) {
	if amount <= 0 {
		return models.Transaction{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	tx := models.Transaction{
		Counterparty:  utils.NormalizeSpace(person),
		Intermediary:  utils.NormalizeSpace(via),
		PaymentMethod: domain.PaymentCash,
		TripID:        tripID,
	}
	switch action {
	case domain.SettlementDebit:
		tx.Kind = domain.TxSettlementDebit
		tx.Amount = -amount
	case domain.SettlementCredit:
		tx.Kind = domain.TxSettlementCredit
		tx.Amount = amount
	default:
		return models.Transaction{}, domain.ValidationError{Field: "action", Msg: "must be debit or credit"}
	}
	return l.append(ctx, tx)
}

func (l *Ledger) append(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.Amount == 0 {
		return models.Transaction{}, domain.ValidationError{Field: "amount", Msg: "must not be zero"}
	}
	if strings.TrimSpace(tx.Counterparty) == "" {
		return models.Transaction{}, domain.ValidationError{Field: "counterparty", Msg: "is required"}
	}
	tx.ID = uuid.NewString()
	tx.CreatedAt = l.Now()
	l.txs = append(l.txs, tx)
	l.balance += tx.Amount

	if l.Journal != nil {
		if err := l.Journal.Append(ctx, tx); err != nil {
			// in-memory ledger stays authoritative; the journal is a mirror
			utils.LogEventCtx(ctx, "ledger", "journal", "append failed tx="+tx.ID+": "+err.Error())
		}
	}
	return tx, nil
}

func (l *Ledger) Balance() int64 { return l.balance }

// History returns matching transactions in append order.
func (l *Ledger) History(filter models.HistoryFilter) []models.Transaction {
	since, until, bounded := l.periodWindow(filter.Period)
	out := []models.Transaction{}
	for _, tx := range l.txs {
		if bounded && (tx.CreatedAt.Before(since) || !tx.CreatedAt.Before(until)) {
			continue
		}
		if filter.Method != "" && tx.PaymentMethod != filter.Method {
			continue
		}
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		if filter.TripID != "" && tx.TripID != filter.TripID {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Income sums fare and cash receipts (settlements excluded) within the period.
func (l *Ledger) Income(period domain.Period) int64 {
	var sum int64
	for _, tx := range l.History(models.HistoryFilter{Period: period}) {
		switch tx.Kind {
		case domain.TxBookingFare, domain.TxQueueFare, domain.TxCashReceipt:
			sum += tx.Amount
		}
	}
	return sum
}

// periodWindow returns the half-open [since, until) range for p. Week and month
// are rolling windows ending now.
func (l *Ledger) periodWindow(p domain.Period) (time.Time, time.Time, bool) {
	now := l.Now()
	today := utils.StartOfDay(now)
	end := now.Add(time.Nanosecond)
	switch p {
	case domain.PeriodDay:
		return today, end, true
	case domain.PeriodYesterday:
		return today.AddDate(0, 0, -1), today, true
	case domain.PeriodWeek:
		return today.AddDate(0, 0, -6), end, true
	case domain.PeriodMonth:
		return today.AddDate(0, 0, -29), end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}
