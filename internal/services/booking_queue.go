package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"
)

// BookingQueue holds the trip's pre-registered bookings, grouped by pickup stop.
type BookingQueue struct {
	seats  *SeatAllocator
	scan   *ScanProtocol
	ledger *Ledger

	bookings []*models.Booking // ascending id
	settled  map[int64]bool    // confirmed or rejected this trip
}

func NewBookingQueue(seats *SeatAllocator, scan *ScanProtocol, ledger *Ledger) *BookingQueue {
	return &BookingQueue{seats: seats, scan: scan, ledger: ledger}
}

// Load adds bookings from the reservation feed. Bookings without an amount are
// priced from the route. The whole batch is rejected on the first invalid row.
func (q *BookingQueue) Load(list []models.Booking, route models.Route) ([]models.Booking, error) {
	seen := map[int64]bool{}
	clean := make([]*models.Booking, 0, len(list))
	for _, in := range list {
		b := in
		b.PassengerName = utils.NormalizeSpace(b.PassengerName)
		switch {
		case b.ID <= 0:
			return nil, domain.ValidationError{Field: "id", Msg: "must be positive"}
		case b.PassengerName == "":
			return nil, domain.ValidationError{Field: "passenger_name", Msg: fmt.Sprintf("booking %d: is required", b.ID)}
		case b.PartySize <= 0:
			return nil, domain.ValidationError{Field: "party_size", Msg: fmt.Sprintf("booking %d: must be at least 1", b.ID)}
		case b.Amount < 0:
			return nil, domain.ValidationError{Field: "amount", Msg: fmt.Sprintf("booking %d: must not be negative", b.ID)}
		case !route.HasStop(b.FromStop) || !route.HasStop(b.ToStop) || b.FromStop == b.ToStop:
			return nil, domain.ValidationError{Field: "stops", Msg: fmt.Sprintf("booking %d: stops %d->%d not on route %s", b.ID, b.FromStop, b.ToStop, route.ID)}
		}
		if seen[b.ID] || q.Known(b.ID) {
			return nil, domain.ConflictError{Resource: "booking", Msg: fmt.Sprintf("id %d already loaded", b.ID)}
		}
		seen[b.ID] = true
		if b.Amount == 0 {
			hops := route.StopIndex(b.ToStop) - route.StopIndex(b.FromStop)
			if hops < 0 {
				hops = -hops
			}
			b.Amount = utils.ComputeFare(hops, 0, route.FarePerStop, route.WalkupFare) * int64(b.PartySize)
		}
		if b.Amount <= 0 {
			return nil, domain.ValidationError{Field: "amount", Msg: fmt.Sprintf("booking %d: no fare", b.ID)}
		}
		b.Status = domain.BookingPending
		b.RejectReason = ""
		b.Payload = nil
		b.Candidate = nil
		clean = append(clean, &b)
	}

	q.bookings = append(q.bookings, clean...)
	sort.Slice(q.bookings, func(i, j int) bool { return q.bookings[i].ID < q.bookings[j].ID })

	out := make([]models.Booking, 0, len(clean))
	for _, b := range clean {
		out = append(out, copyBooking(*b))
	}
	return out, nil
}

// Known reports whether id is on the list or was already settled this trip.
func (q *BookingQueue) Known(id int64) bool {
	return q.find(id) != nil || q.settled[id]
}

func (q *BookingQueue) Get(id int64) (models.Booking, error) {
	b := q.find(id)
	if b == nil {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", ID: id}
	}
	return copyBooking(*b), nil
}

// Active returns all bookings still in the active set, by id.
func (q *BookingQueue) Active() []models.Booking {
	out := make([]models.Booking, 0, len(q.bookings))
	for _, b := range q.bookings {
		out = append(out, copyBooking(*b))
	}
	return out
}

// ByStop groups active bookings by pickup stop following the given stop order.
func (q *BookingQueue) ByStop(stops []models.Stop) []models.StopBookings {
	out := []models.StopBookings{}
	for _, s := range stops {
		group := models.StopBookings{StopID: s.ID, Bookings: []models.Booking{}}
		for _, b := range q.bookings {
			if b.FromStop == s.ID {
				group.Bookings = append(group.Bookings, copyBooking(*b))
			}
		}
		if len(group.Bookings) > 0 {
			out = append(out, group)
		}
	}
	return out
}

// Reserved sums party sizes of bookings accepted but not yet seated.
func (q *BookingQueue) Reserved() int {
	n := 0
	for _, b := range q.bookings {
		switch b.Status {
		case domain.BookingAccepted, domain.BookingAwaitingScan, domain.BookingConfirmed:
			n += b.PartySize
		}
	}
	return n
}

// Accept authorizes a pending booking to be scanned. No seats are touched.
func (q *BookingQueue) Accept(id int64) (models.Booking, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status != domain.BookingPending {
		return models.Booking{}, statusConflict(b, "accept")
	}
	b.Status = domain.BookingAccepted
	return copyBooking(*b), nil
}

// BeginScan opens the scanner for an accepted booking.
func (q *BookingQueue) BeginScan(id int64, now time.Time) (models.ScanSession, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.ScanSession{}, err
	}
	if b.Status != domain.BookingAccepted {
		return models.ScanSession{}, statusConflict(b, "begin_scan")
	}
	return q.openScan(b, now)
}

// OnScanMatched keeps the payload for the operator's accept/reject decision.
func (q *BookingQueue) OnScanMatched(id int64, payload *models.QRPayload) (models.Booking, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.Booking{}, err
	}
	b.Status = domain.BookingConfirmed
	b.RejectReason = ""
	if payload != nil {
		pl := *payload
		b.Payload = &pl
	}
	return copyBooking(*b), nil
}

// OnScanNotFound marks the booking rejected by the scanner and suggests the
// lowest-id pending booking at the same stop. Nothing is scanned automatically.
func (q *BookingQueue) OnScanNotFound(id int64, reason domain.RejectReason) (*int64, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = domain.ReasonQRNotFound
	}
	b.Status = domain.BookingRejected
	b.RejectReason = reason
	b.Payload = nil
	b.Candidate = q.nextCandidate(b)
	if b.Candidate == nil {
		return nil, nil
	}
	c := *b.Candidate
	return &c, nil
}

// Confirm seats the booking's party and records its fare. On CapacityExceeded the
// booking stays confirmed and the session stays open for a later retry.
func (q *BookingQueue) Confirm(ctx context.Context, id int64, tripID string) (models.Booking, []int, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.Booking{}, nil, err
	}
	ref := bookingRef(id)
	if b.Status != domain.BookingConfirmed || !q.scan.ActiveFor(ref) {
		return models.Booking{}, nil, statusConflict(b, "confirm")
	}

	seatIDs, err := q.seats.TryOccupy(b.PartySize, models.Assignment{
		PassengerName: b.PassengerName,
		FromStop:      b.FromStop,
		ToStop:        b.ToStop,
		PaymentMethod: domain.PaymentQR,
		Amount:        b.Amount,
		Subject:       ref,
	})
	if err != nil {
		return copyBooking(*b), nil, err
	}
	if _, err := q.ledger.Record(ctx, domain.TxBookingFare, b.Amount, b.PassengerName, domain.PaymentQR, tripID); err != nil {
		_ = q.seats.Release(seatIDs)
		return copyBooking(*b), nil, err
	}
	if _, err := q.scan.Decide(ref); err != nil {
		return copyBooking(*b), seatIDs, err
	}
	done := copyBooking(*b)
	q.remove(id)
	return done, seatIDs, nil
}

// Reject removes the booking without seating or payment. Rejecting a booking the
// scanner could not match promotes its remembered candidate and opens a scan
// for it, when the candidate is still pending and the scanner is free.
func (q *BookingQueue) Reject(id int64, now time.Time) (models.Booking, *models.ScanSession, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.Booking{}, nil, err
	}
	q.scan.CancelSubject(bookingRef(id))
	done := copyBooking(*b)
	q.remove(id)

	if done.Status != domain.BookingRejected || done.Candidate == nil {
		return done, nil, nil
	}
	next := q.find(*done.Candidate)
	if next == nil || next.Status != domain.BookingPending {
		return done, nil, nil
	}
	session, err := q.openScan(next, now)
	if err != nil {
		return done, nil, nil
	}
	return done, &session, nil
}

// Revert undoes a scan: back to accepted, payload discarded, seats and ledger untouched.
func (q *BookingQueue) Revert(id int64) (models.Booking, error) {
	b, err := q.mustFind(id)
	if err != nil {
		return models.Booking{}, err
	}
	switch b.Status {
	case domain.BookingAwaitingScan, domain.BookingConfirmed, domain.BookingRejected:
	default:
		return models.Booking{}, statusConflict(b, "revert")
	}
	q.scan.CancelSubject(bookingRef(id))
	b.Status = domain.BookingAccepted
	b.RejectReason = ""
	b.Payload = nil
	b.Candidate = nil
	return copyBooking(*b), nil
}

// Abandon returns a booking whose session was cancelled to accepted.
func (q *BookingQueue) Abandon(id int64) {
	if b := q.find(id); b != nil {
		switch b.Status {
		case domain.BookingAwaitingScan, domain.BookingConfirmed:
			b.Status = domain.BookingAccepted
			b.Payload = nil
		}
	}
}

func (q *BookingQueue) Clear() {
	q.bookings = nil
	q.settled = nil
}

func (q *BookingQueue) openScan(b *models.Booking, now time.Time) (models.ScanSession, error) {
	session, err := q.scan.Open(bookingRef(b.ID), b.Amount, now)
	if err != nil {
		return models.ScanSession{}, err
	}
	b.Status = domain.BookingAwaitingScan
	b.RejectReason = ""
	b.Payload = nil
	b.Candidate = nil
	return session, nil
}

func (q *BookingQueue) nextCandidate(failed *models.Booking) *int64 {
	for _, b := range q.bookings {
		if b.ID != failed.ID && b.FromStop == failed.FromStop && b.Status == domain.BookingPending {
			id := b.ID
			return &id
		}
	}
	return nil
}

func (q *BookingQueue) find(id int64) *models.Booking {
	for _, b := range q.bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (q *BookingQueue) mustFind(id int64) (*models.Booking, error) {
	b := q.find(id)
	if b == nil {
		return nil, domain.NotFoundError{Resource: "booking", ID: id}
	}
	return b, nil
}

func (q *BookingQueue) remove(id int64) {
	if q.settled == nil {
		q.settled = map[int64]bool{}
	}
	q.settled[id] = true
	for i, b := range q.bookings {
		if b.ID == id {
			q.bookings = append(q.bookings[:i], q.bookings[i+1:]...)
			return
		}
	}
}

func bookingRef(id int64) models.SubjectRef {
	return models.SubjectRef{Kind: domain.SubjectBooking, ID: id}
}

func statusConflict(b *models.Booking, op string) error {
	status := string(b.Status)
	if b.RejectReason != "" {
		status += "(" + string(b.RejectReason) + ")"
	}
	return domain.ConflictError{
		Resource: "booking",
		Msg:      fmt.Sprintf("%s not allowed for booking %d in status %s", op, b.ID, strings.ToLower(status)),
	}
}

func copyBooking(b models.Booking) models.Booking {
	if b.Payload != nil {
		pl := *b.Payload
		b.Payload = &pl
	}
	if b.Candidate != nil {
		c := *b.Candidate
		b.Candidate = &c
	}
	return b
}
