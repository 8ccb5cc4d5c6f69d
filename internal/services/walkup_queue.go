package services

import (
	"context"
	"fmt"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"
)

// WalkupQueue is the FIFO line of walk-up passengers. Positions are handed out
// at insertion and never renumbered.
type WalkupQueue struct {
	seats  *SeatAllocator
	scan   *ScanProtocol
	ledger *Ledger

	entries []*models.QueueEntry // ascending position
	nextID  int64
	nextPos int
}

func NewWalkupQueue(seats *SeatAllocator, scan *ScanProtocol, ledger *Ledger) *WalkupQueue {
	return &WalkupQueue{seats: seats, scan: scan, ledger: ledger}
}

// Enqueue appends a walk-up. A zero amount is priced at the route's walk-up fare per head.
func (q *WalkupQueue) Enqueue(name string, partySize int, amount int64, route models.Route) (models.QueueEntry, error) {
	name = utils.NormalizeSpace(name)
	if name == "" {
		return models.QueueEntry{}, domain.ValidationError{Field: "passenger_name", Msg: "is required"}
	}
	if partySize <= 0 {
		return models.QueueEntry{}, domain.ValidationError{Field: "party_size", Msg: "must be at least 1"}
	}
	if amount < 0 {
		return models.QueueEntry{}, domain.ValidationError{Field: "amount", Msg: "must not be negative"}
	}
	if amount == 0 {
		amount = route.WalkupFare * int64(partySize)
	}
	if amount <= 0 {
		return models.QueueEntry{}, domain.ValidationError{Field: "amount", Msg: "route has no walk-up fare"}
	}

	q.nextID++
	q.nextPos++
	e := &models.QueueEntry{
		ID:            q.nextID,
		PassengerName: name,
		PartySize:     partySize,
		Amount:        amount,
		Position:      q.nextPos,
		Status:        domain.QueueWaiting,
	}
	q.entries = append(q.entries, e)
	return copyEntry(*e), nil
}

func (q *WalkupQueue) Entries() []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, copyEntry(*e))
	}
	return out
}

func (q *WalkupQueue) Get(id int64) (models.QueueEntry, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return models.QueueEntry{}, err
	}
	return copyEntry(*e), nil
}

// NextCandidate is the lowest-position waiting entry. A matched entry awaiting
// the operator's decision is still waiting, so it stays the candidate.
func (q *WalkupQueue) NextCandidate() (models.QueueEntry, bool) {
	for _, e := range q.entries {
		if e.Status == domain.QueueWaiting {
			return copyEntry(*e), true
		}
	}
	return models.QueueEntry{}, false
}

// BeginScan opens the scanner for the next candidate. id 0 means "whoever is next".
func (q *WalkupQueue) BeginScan(id int64, now time.Time) (models.ScanSession, error) {
	next, ok := q.NextCandidate()
	if !ok {
		if id != 0 {
			if _, err := q.mustFind(id); err != nil {
				return models.ScanSession{}, err
			}
		}
		return models.ScanSession{}, domain.ConflictError{Resource: "queue", Msg: "no waiting entry to scan"}
	}
	if id == 0 {
		id = next.ID
	}
	if id != next.ID {
		if _, err := q.mustFind(id); err != nil {
			return models.ScanSession{}, err
		}
		return models.ScanSession{}, domain.ConflictError{
			Resource: "queue",
			Msg:      fmt.Sprintf("entry %d is not next in line (next is %d)", id, next.ID),
		}
	}
	return q.scan.Open(queueRef(id), next.Amount, now)
}

// OnScanMatched attaches the payload; the entry keeps waiting for the operator.
func (q *WalkupQueue) OnScanMatched(id int64, payload *models.QRPayload) (models.QueueEntry, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return models.QueueEntry{}, err
	}
	e.Status = domain.QueueWaiting
	if payload != nil {
		pl := *payload
		e.Payload = &pl
	} else {
		e.Payload = &models.QRPayload{}
	}
	return copyEntry(*e), nil
}

// OnScanNotFound marks the entry and returns the new next candidate, if any.
func (q *WalkupQueue) OnScanNotFound(id int64) (*int64, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return nil, err
	}
	e.Status = domain.QueueNotFound
	e.Payload = nil
	next, ok := q.NextCandidate()
	if !ok {
		return nil, nil
	}
	return &next.ID, nil
}

// Accept seats the matched entry's party and records its fare.
func (q *WalkupQueue) Accept(ctx context.Context, id int64, tripID string) (models.QueueEntry, []int, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return models.QueueEntry{}, nil, err
	}
	ref := queueRef(id)
	if e.Payload == nil || !q.scan.ActiveFor(ref) {
		return models.QueueEntry{}, nil, domain.ConflictError{
			Resource: "queue",
			Msg:      fmt.Sprintf("entry %d has no matched scan awaiting a decision", id),
		}
	}

	seatIDs, err := q.seats.TryOccupy(e.PartySize, models.Assignment{
		PassengerName: e.PassengerName,
		PaymentMethod: domain.PaymentQR,
		Amount:        e.Amount,
		Subject:       ref,
	})
	if err != nil {
		return copyEntry(*e), nil, err
	}
	if _, err := q.ledger.Record(ctx, domain.TxQueueFare, e.Amount, e.PassengerName, domain.PaymentQR, tripID); err != nil {
		_ = q.seats.Release(seatIDs)
		return copyEntry(*e), nil, err
	}
	if _, err := q.scan.Decide(ref); err != nil {
		return copyEntry(*e), seatIDs, err
	}
	e.Status = domain.QueueScanned
	done := copyEntry(*e)
	q.remove(id)
	return done, seatIDs, nil
}

// Reject removes the entry. When it had already been through the scanner, the
// line keeps moving: a session is opened for the new next candidate unless the
// scanner is held by someone else.
func (q *WalkupQueue) Reject(id int64, now time.Time) (models.QueueEntry, *models.ScanSession, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return models.QueueEntry{}, nil, err
	}
	hadSession := q.scan.CancelSubject(queueRef(id))
	scanned := hadSession || e.Status == domain.QueueNotFound || e.Payload != nil
	done := copyEntry(*e)
	q.remove(id)

	if !scanned {
		return done, nil, nil
	}
	next, ok := q.NextCandidate()
	if !ok {
		return done, nil, nil
	}
	session, err := q.scan.Open(queueRef(next.ID), next.Amount, now)
	if err != nil {
		return done, nil, nil
	}
	return done, &session, nil
}

// Revert puts a scanned entry back to waiting and discards its payload.
func (q *WalkupQueue) Revert(id int64) (models.QueueEntry, error) {
	e, err := q.mustFind(id)
	if err != nil {
		return models.QueueEntry{}, err
	}
	hadSession := q.scan.CancelSubject(queueRef(id))
	if !hadSession && e.Status != domain.QueueNotFound && e.Payload == nil {
		return models.QueueEntry{}, domain.ConflictError{
			Resource: "queue",
			Msg:      fmt.Sprintf("entry %d has nothing to revert", id),
		}
	}
	e.Status = domain.QueueWaiting
	e.Payload = nil
	return copyEntry(*e), nil
}

// Abandon drops a payload left behind by a cancelled session.
func (q *WalkupQueue) Abandon(id int64) {
	if e := q.find(id); e != nil && e.Status == domain.QueueWaiting {
		e.Payload = nil
	}
}

// Clear empties the line. Ids and positions keep counting up.
func (q *WalkupQueue) Clear() {
	q.entries = nil
}

func (q *WalkupQueue) find(id int64) *models.QueueEntry {
	for _, e := range q.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (q *WalkupQueue) mustFind(id int64) (*models.QueueEntry, error) {
	e := q.find(id)
	if e == nil {
		return nil, domain.NotFoundError{Resource: "queue_entry", ID: id}
	}
	return e, nil
}

func (q *WalkupQueue) remove(id int64) {
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func queueRef(id int64) models.SubjectRef {
	return models.SubjectRef{Kind: domain.SubjectQueue, ID: id}
}

func copyEntry(e models.QueueEntry) models.QueueEntry {
	if e.Payload != nil {
		pl := *e.Payload
		e.Payload = &pl
	}
	return e
}
