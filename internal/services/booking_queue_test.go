package services

import (
	"context"
	"errors"
	"testing"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
)

type bookingRig struct {
	seats  *SeatAllocator
	scan   *ScanProtocol
	ledger *Ledger
	queue  *BookingQueue
}

func newBookingRig(t *testing.T, capacity int, list ...models.Booking) bookingRig {
	t.Helper()
	seats := NewSeatAllocator(capacity)
	scan := NewScanProtocol()
	ledger := NewLedger(nil, newClock(t0).Now)
	q := NewBookingQueue(seats, scan, ledger)
	if _, err := q.Load(list, testRoutes()[0]); err != nil {
		t.Fatalf("load: %v", err)
	}
	return bookingRig{seats: seats, scan: scan, ledger: ledger, queue: q}
}

func (r bookingRig) scanMatched(t *testing.T, id int64) {
	t.Helper()
	b, err := r.queue.Get(id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	if b.Status == domain.BookingPending {
		if _, err := r.queue.Accept(id); err != nil {
			t.Fatalf("accept %d: %v", id, err)
		}
	}
	session, err := r.queue.BeginScan(id, t0)
	if err != nil {
		t.Fatalf("begin scan %d: %v", id, err)
	}
	out := matched(b.Amount)
	if _, err := r.scan.Resolve(session.ID, out); err != nil {
		t.Fatalf("resolve %d: %v", id, err)
	}
	if _, err := r.queue.OnScanMatched(id, out.Payload); err != nil {
		t.Fatalf("matched %d: %v", id, err)
	}
}

func TestBookingQueueLoadValidation(t *testing.T) {
	r := newBookingRig(t, 6)
	route := testRoutes()[0]

	cases := []struct {
		name string
		in   models.Booking
	}{
		{"no name", booking(1, " ", 0, 1, 1, 100)},
		{"no party", booking(1, "A", 0, 1, 0, 100)},
		{"unknown stop", booking(1, "A", 0, 9, 1, 100)},
		{"same stop", booking(1, "A", 2, 2, 1, 100)},
		{"negative amount", booking(1, "A", 0, 1, 1, -1)},
	}
	for _, tc := range cases {
		if _, err := r.queue.Load([]models.Booking{tc.in}, route); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	if _, err := r.queue.Load([]models.Booking{booking(5, "A", 0, 1, 1, 1), booking(5, "B", 0, 1, 1, 1)}, route); !domain.IsConflict(err) {
		t.Fatalf("duplicate id: %v", err)
	}
	if len(r.queue.Active()) != 0 {
		t.Fatalf("failed batch left bookings behind")
	}

	loaded, err := r.queue.Load([]models.Booking{booking(7, "  Anna   K ", 0, 2, 2, 0)}, route)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded[0].Amount != 400 || loaded[0].PassengerName != "Anna K" || loaded[0].Status != domain.BookingPending {
		t.Fatalf("unexpected booking: %+v", loaded[0])
	}
}

func TestBookingQueueConfirmSeatsAndRecords(t *testing.T) {
	r := newBookingRig(t, 6, booking(1, "Ivan", 0, 3, 2, 640))
	r.scanMatched(t, 1)

	b, _ := r.queue.Get(1)
	if b.Status != domain.BookingConfirmed || b.Payload == nil || b.Payload.Sum != 640 {
		t.Fatalf("unexpected booking after match: %+v", b)
	}
	if r.queue.Reserved() != 2 {
		t.Fatalf("reserved = %d", r.queue.Reserved())
	}

	done, seatIDs, err := r.queue.Confirm(context.Background(), 1, "trip-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(seatIDs) != 2 || done.ID != 1 {
		t.Fatalf("seats=%v done=%+v", seatIDs, done)
	}
	seat := r.seats.Seats()[0]
	if seat.Assignment.PassengerName != "Ivan" || seat.Assignment.PaymentMethod != domain.PaymentQR {
		t.Fatalf("assignment = %+v", seat.Assignment)
	}
	history := r.ledger.History(models.HistoryFilter{})
	if len(history) != 1 || history[0].Kind != domain.TxBookingFare || history[0].Amount != 640 || history[0].TripID != "trip-1" {
		t.Fatalf("ledger = %+v", history)
	}
	if _, ok := r.scan.Active(); ok {
		t.Fatalf("session not closed after confirm")
	}
	if _, err := r.queue.Get(1); !domain.IsNotFound(err) {
		t.Fatalf("booking still active: %v", err)
	}
	if r.queue.Reserved() != 0 {
		t.Fatalf("reserved after seating = %d", r.queue.Reserved())
	}
}

func TestBookingQueueStatusRules(t *testing.T) {
	r := newBookingRig(t, 6, booking(1, "A", 0, 1, 1, 100), booking(2, "B", 0, 1, 1, 100))

	if _, err := r.queue.BeginScan(1, t0); !domain.IsConflict(err) {
		t.Fatalf("scan before accept: %v", err)
	}
	if _, _, err := r.queue.Confirm(context.Background(), 1, ""); !domain.IsConflict(err) {
		t.Fatalf("confirm pending: %v", err)
	}
	if _, err := r.queue.Accept(1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := r.queue.Accept(1); !domain.IsConflict(err) {
		t.Fatalf("double accept: %v", err)
	}
	if _, err := r.queue.Revert(2); !domain.IsConflict(err) {
		t.Fatalf("revert pending: %v", err)
	}
	if _, err := r.queue.Accept(99); !domain.IsNotFound(err) {
		t.Fatalf("unknown booking: %v", err)
	}

	if _, err := r.queue.BeginScan(1, t0); err != nil {
		t.Fatalf("begin scan: %v", err)
	}
	_, _ = r.queue.Accept(2)
	if _, err := r.queue.BeginScan(2, t0); !domain.IsScannerBusy(err) {
		t.Fatalf("second scan: %v", err)
	}
	b, _ := r.queue.Get(2)
	if b.Status != domain.BookingAccepted {
		t.Fatalf("busy scanner changed status to %s", b.Status)
	}
}

func TestBookingQueueRejectTwice(t *testing.T) {
	r := newBookingRig(t, 6, booking(1, "A", 0, 1, 1, 100))
	_, _ = r.queue.Accept(1)

	if _, _, err := r.queue.Reject(1, t0); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, _, err := r.queue.Reject(1, t0); !domain.IsNotFound(err) {
		t.Fatalf("second reject: %v", err)
	}
	if r.seats.OccupiedCount() != 0 || r.ledger.Balance() != 0 {
		t.Fatalf("reject had side effects")
	}
}

func TestBookingQueueNotFoundHighlightsAndPromotes(t *testing.T) {
	r := newBookingRig(t, 6,
		booking(1, "A", 0, 3, 1, 100),
		booking(2, "B", 1, 3, 1, 100),
		booking(4, "D", 0, 3, 1, 100),
		booking(3, "C", 0, 3, 1, 100),
	)
	_, _ = r.queue.Accept(1)
	session, _ := r.queue.BeginScan(1, t0)
	if _, err := r.scan.Resolve(session.ID, models.ScanOutcome{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	next, err := r.queue.OnScanNotFound(1, "")
	if err != nil {
		t.Fatalf("not found: %v", err)
	}
	if next == nil || *next != 3 {
		t.Fatalf("candidate = %v, want 3", next)
	}
	b, _ := r.queue.Get(1)
	if b.Status != domain.BookingRejected || b.RejectReason != domain.ReasonQRNotFound {
		t.Fatalf("booking = %+v", b)
	}
	if _, ok := r.scan.Active(); ok {
		t.Fatalf("scan auto-opened before explicit reject")
	}

	_, promoted, err := r.queue.Reject(1, t0)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if promoted == nil || promoted.Subject.ID != 3 {
		t.Fatalf("promoted = %+v", promoted)
	}
	c, _ := r.queue.Get(3)
	if c.Status != domain.BookingAwaitingScan {
		t.Fatalf("candidate status = %s", c.Status)
	}
}

func TestBookingQueueRevertLeavesSeatsAndLedger(t *testing.T) {
	r := newBookingRig(t, 6, booking(1, "A", 0, 1, 1, 100))
	_, _ = r.queue.Accept(1)
	seatsBefore, balanceBefore := r.seats.Seats(), r.ledger.Balance()

	session, _ := r.queue.BeginScan(1, t0)
	_, _ = r.scan.Resolve(session.ID, models.ScanOutcome{})
	_, _ = r.queue.OnScanNotFound(1, domain.ReasonQRNotFound)

	b, err := r.queue.Revert(1)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if b.Status != domain.BookingAccepted || b.RejectReason != "" || b.Candidate != nil {
		t.Fatalf("booking = %+v", b)
	}
	seatsAfter := r.seats.Seats()
	for i := range seatsBefore {
		if seatsBefore[i].Occupied != seatsAfter[i].Occupied {
			t.Fatalf("seat %d changed", seatsBefore[i].ID)
		}
	}
	if r.ledger.Balance() != balanceBefore {
		t.Fatalf("ledger changed")
	}

	r.scanMatched(t, 1)
	if _, err := r.queue.Revert(1); err != nil {
		t.Fatalf("revert matched: %v", err)
	}
	b, _ = r.queue.Get(1)
	if b.Payload != nil {
		t.Fatalf("payload kept after revert")
	}
	if _, ok := r.scan.Active(); ok {
		t.Fatalf("revert left scanner busy")
	}
}

func TestBookingQueueCapacityExceededKeepsConfirmed(t *testing.T) {
	r := newBookingRig(t, 1, booking(1, "A", 0, 1, 1, 100), booking(2, "B", 0, 1, 1, 100))
	r.scanMatched(t, 1)
	if _, _, err := r.queue.Confirm(context.Background(), 1, ""); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	r.scanMatched(t, 2)

	_, _, err := r.queue.Confirm(context.Background(), 2, "")
	var capErr domain.CapacityExceededError
	if !errors.As(err, &capErr) || capErr.Requested != 1 || capErr.Free != 0 {
		t.Fatalf("expected CapacityExceeded{1,0}, got %v", err)
	}
	b, _ := r.queue.Get(2)
	if b.Status != domain.BookingConfirmed {
		t.Fatalf("status = %s", b.Status)
	}
	if !r.scan.ActiveFor(bookingRef(2)) {
		t.Fatalf("session closed on capacity failure")
	}
	if len(r.ledger.History(models.HistoryFilter{})) != 1 {
		t.Fatalf("ledger recorded a failed confirm")
	}
}

func TestBookingQueueByStopFollowsTravelOrder(t *testing.T) {
	r := newBookingRig(t, 6,
		booking(1, "A", 0, 3, 1, 100),
		booking(2, "B", 2, 3, 1, 100),
		booking(3, "C", 0, 2, 1, 100),
	)
	m := NewTripMachine(testRoutes(), 0)
	_ = m.SelectRoute("247")
	_ = m.ToggleDirection()

	groups := r.queue.ByStop(m.Stops())
	if len(groups) != 2 || groups[0].StopID != 2 || groups[1].StopID != 0 {
		t.Fatalf("groups = %+v", groups)
	}
	if len(groups[1].Bookings) != 2 || groups[1].Bookings[0].ID != 1 {
		t.Fatalf("stop 0 bookings = %+v", groups[1].Bookings)
	}
}
