package models

import "driverdesk/internal/domain"

// CashRequest is a cash receipt or a driver/dispatcher settlement waiting for
// its confirmation handshake.
type CashRequest struct {
	ID           int64                   `json:"id"`
	Kind         domain.CashKind         `json:"kind"`
	Counterparty string                  `json:"counterparty"`
	Intermediary string                  `json:"intermediary,omitempty"`
	Action       domain.SettlementAction `json:"action,omitempty"`
	Amount       int64                   `json:"amount"`
	PartySize    int                     `json:"party_size"`
	FromStop     int                     `json:"from_stop"`
	ToStop       int                     `json:"to_stop"`
	Status       domain.CashStatus       `json:"status"`
	Payload      *QRPayload              `json:"payload,omitempty"`
}
