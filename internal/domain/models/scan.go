package models

import (
	"time"

	"driverdesk/internal/domain"
)

// QRPayload is the decoded content of a presented payment QR.
type QRPayload struct {
	Sum       int64     `json:"sum"`
	Recipient string    `json:"recipient"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanOutcome is what the scanner collaborator reports for a session.
type ScanOutcome struct {
	Matched bool       `json:"matched"`
	Payload *QRPayload `json:"payload,omitempty"`
}

type ScanSession struct {
	ID       string           `json:"id"`
	Subject  SubjectRef       `json:"subject"`
	Amount   int64            `json:"amount"`
	Phase    domain.ScanPhase `json:"phase"`
	Payload  *QRPayload       `json:"payload,omitempty"`
	OpenedAt time.Time        `json:"opened_at"`
}
