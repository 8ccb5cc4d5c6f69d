package models

import "driverdesk/internal/domain"

// Snapshot is the read-only view returned after every console command.
type Snapshot struct {
	Phase            domain.TripPhase `json:"phase"`
	TripID           string           `json:"trip_id,omitempty"`
	RouteID          string           `json:"route_id,omitempty"`
	Direction        domain.Direction `json:"direction"`
	Stops            []Stop           `json:"stops"`
	CountdownSeconds *int64           `json:"countdown_seconds,omitempty"`
	Countdown        string           `json:"countdown,omitempty"`

	Capacity int    `json:"capacity"`
	Occupied int    `json:"occupied"`
	Reserved int    `json:"reserved"`
	Free     int    `json:"free"`
	Seats    []Seat `json:"seats"`

	PendingBookings []Booking      `json:"pending_bookings"`
	BookingsByStop  []StopBookings `json:"bookings_by_stop"`
	Queue           []QueueEntry   `json:"queue"`
	NextCandidate   *int64         `json:"next_candidate,omitempty"`
	CashRequests    []CashRequest  `json:"cash_requests"`

	LedgerBalance int64        `json:"ledger_balance"`
	ActiveScan    *ScanSession `json:"active_scan_session,omitempty"`

	// Candidate is set only on the response of the command that produced a
	// promotion suggestion (scanner rejection or walk-up reject).
	Candidate *SubjectRef `json:"candidate,omitempty"`
}

// Event is what snapshot sinks receive after a successful command.
type Event struct {
	Action    domain.Action `json:"action"`
	RequestID string        `json:"request_id,omitempty"`
	Snapshot  Snapshot      `json:"snapshot"`
}
