package models

import "driverdesk/internal/domain"

// SubjectRef points at the booking, walk-up entry or cash request a scan is about.
type SubjectRef struct {
	Kind domain.SubjectKind `json:"kind"`
	ID   int64              `json:"id"`
}

// Booking is a pre-registered reservation picked up at FromStop.
type Booking struct {
	ID            int64                `json:"id"`
	PassengerName string               `json:"passenger_name"`
	FromStop      int                  `json:"from_stop"`
	ToStop        int                  `json:"to_stop"`
	PartySize     int                  `json:"party_size"`
	Amount        int64                `json:"amount"`
	Status        domain.BookingStatus `json:"status"`
	RejectReason  domain.RejectReason  `json:"reject_reason,omitempty"`
	Payload       *QRPayload           `json:"payload,omitempty"`
	// Candidate is the booking suggested next after a scanner rejection.
	Candidate *int64 `json:"candidate,omitempty"`
}

// StopBookings groups active bookings by pickup stop for display.
type StopBookings struct {
	StopID   int       `json:"stop_id"`
	Bookings []Booking `json:"bookings"`
}
