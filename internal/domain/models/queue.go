package models

import "driverdesk/internal/domain"

// QueueEntry is a walk-up passenger (or group) waiting in line.
type QueueEntry struct {
	ID            int64              `json:"id"`
	PassengerName string             `json:"passenger_name"`
	PartySize     int                `json:"party_size"`
	Amount        int64              `json:"amount"`
	Position      int                `json:"position"`
	Status        domain.QueueStatus `json:"status"`
	Payload       *QRPayload         `json:"payload,omitempty"`
}
