package models

import (
	"time"

	"driverdesk/internal/domain"
)

// Transaction is one immutable ledger line. Amount is signed: positive credits the driver.
type Transaction struct {
	ID            string                 `json:"id"`
	Kind          domain.TransactionKind `json:"kind"`
	Amount        int64                  `json:"amount"`
	Counterparty  string                 `json:"counterparty"`
	Intermediary  string                 `json:"intermediary,omitempty"`
	PaymentMethod domain.PaymentMethod   `json:"payment_method"`
	TripID        string                 `json:"trip_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// HistoryFilter narrows a ledger history query. Zero values match everything.
type HistoryFilter struct {
	Period domain.Period
	Method domain.PaymentMethod
	Kind   domain.TransactionKind
	TripID string
}
