package services

import (
	"context"
	"fmt"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"
)

// CashDesk holds cash receipts and driver/dispatcher settlements until their
// scan handshake is confirmed. Money only moves on Confirm.
type CashDesk struct {
	seats  *SeatAllocator
	scan   *ScanProtocol
	ledger *Ledger

	requests []*models.CashRequest
	nextID   int64
}

func NewCashDesk(seats *SeatAllocator, scan *ScanProtocol, ledger *Ledger) *CashDesk {
	return &CashDesk{seats: seats, scan: scan, ledger: ledger}
}

// Collect registers a cash fare and opens the scanner for it. When the scanner is
// busy nothing is registered.
func (d *CashDesk) Collect(amount int64, partySize int, counterparty string, from, to int, route models.Route, now time.Time) (models.CashRequest, models.ScanSession, error) {
	counterparty = utils.NormalizeSpace(counterparty)
	switch {
	case amount <= 0:
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	case partySize < 0:
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "party_size", Msg: "must not be negative"}
	case counterparty == "":
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "counterparty", Msg: "is required"}
	}
	if partySize > 0 && (from != 0 || to != 0) && (!route.HasStop(from) || !route.HasStop(to)) {
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "stops", Msg: fmt.Sprintf("stops %d->%d not on route %s", from, to, route.ID)}
	}
	return d.open(models.CashRequest{
		Kind:         domain.CashReceiptRequest,
		Counterparty: counterparty,
		Amount:       amount,
		PartySize:    partySize,
		FromStop:     from,
		ToStop:       to,
	}, now)
}

// Settle registers a settlement between the driver and a dispatcher, optionally
// routed through an intermediary, and opens the scanner for it.
func (d *CashDesk) Settle(person string, action domain.SettlementAction, amount int64, via string, now time.Time) (models.CashRequest, models.ScanSession, error) {
	person = utils.NormalizeSpace(person)
	if person == "" {
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "person", Msg: "is required"}
	}
	if amount <= 0 {
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if action != domain.SettlementDebit && action != domain.SettlementCredit {
		return models.CashRequest{}, models.ScanSession{}, domain.ValidationError{Field: "action", Msg: "must be debit or credit"}
	}
	return d.open(models.CashRequest{
		Kind:         domain.CashSettlementRequest,
		Counterparty: person,
		Intermediary: utils.NormalizeSpace(via),
		Action:       action,
		Amount:       amount,
	}, now)
}

func (d *CashDesk) open(req models.CashRequest, now time.Time) (models.CashRequest, models.ScanSession, error) {
	req.ID = d.nextID + 1
	session, err := d.scan.Open(cashRef(req.ID), req.Amount, now)
	if err != nil {
		return models.CashRequest{}, models.ScanSession{}, err
	}
	d.nextID = req.ID
	req.Status = domain.CashAwaitingScan
	r := req
	d.requests = append(d.requests, &r)
	return copyCash(r), session, nil
}

func (d *CashDesk) Requests() []models.CashRequest {
	out := make([]models.CashRequest, 0, len(d.requests))
	for _, r := range d.requests {
		out = append(out, copyCash(*r))
	}
	return out
}

func (d *CashDesk) Get(id int64) (models.CashRequest, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.CashRequest{}, err
	}
	return copyCash(*r), nil
}

// BeginScan re-opens the scanner for a pending request.
func (d *CashDesk) BeginScan(id int64, now time.Time) (models.ScanSession, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.ScanSession{}, err
	}
	if r.Status != domain.CashPending {
		return models.ScanSession{}, cashConflict(r, "begin_scan")
	}
	session, err := d.scan.Open(cashRef(id), r.Amount, now)
	if err != nil {
		return models.ScanSession{}, err
	}
	r.Status = domain.CashAwaitingScan
	return session, nil
}

func (d *CashDesk) OnScanMatched(id int64, payload *models.QRPayload) (models.CashRequest, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.CashRequest{}, err
	}
	r.Status = domain.CashAwaitingDecision
	if payload != nil {
		pl := *payload
		r.Payload = &pl
	}
	return copyCash(*r), nil
}

// OnScanNotFound returns the request to pending; the operator re-scans or rejects.
func (d *CashDesk) OnScanNotFound(id int64) error {
	r, err := d.mustFind(id)
	if err != nil {
		return err
	}
	r.Status = domain.CashPending
	r.Payload = nil
	return nil
}

// Confirm moves the money: a receipt seats its party (if any) and records a cash
// receipt, a settlement records the signed settlement line.
func (d *CashDesk) Confirm(ctx context.Context, id int64, tripID string) (models.CashRequest, models.Transaction, []int, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.CashRequest{}, models.Transaction{}, nil, err
	}
	ref := cashRef(id)
	if r.Status != domain.CashAwaitingDecision || !d.scan.ActiveFor(ref) {
		return models.CashRequest{}, models.Transaction{}, nil, cashConflict(r, "confirm")
	}

	var (
		seatIDs []int
		tx      models.Transaction
	)
	switch r.Kind {
	case domain.CashReceiptRequest:
		if r.PartySize > 0 {
			seatIDs, err = d.seats.TryOccupy(r.PartySize, models.Assignment{
				PassengerName: r.Counterparty,
				FromStop:      r.FromStop,
				ToStop:        r.ToStop,
				PaymentMethod: domain.PaymentCash,
				Amount:        r.Amount,
				Subject:       ref,
			})
			if err != nil {
				return copyCash(*r), models.Transaction{}, nil, err
			}
		}
		tx, err = d.ledger.Record(ctx, domain.TxCashReceipt, r.Amount, r.Counterparty, domain.PaymentCash, tripID)
	default:
		tx, err = d.ledger.Settle(ctx, r.Counterparty, r.Action, r.Amount, r.Intermediary, tripID)
	}
	if err != nil {
		if len(seatIDs) > 0 {
			_ = d.seats.Release(seatIDs)
		}
		return copyCash(*r), models.Transaction{}, nil, err
	}
	if _, err := d.scan.Decide(ref); err != nil {
		return copyCash(*r), tx, seatIDs, err
	}
	done := copyCash(*r)
	d.remove(id)
	return done, tx, seatIDs, nil
}

// Reject drops the request and any session tied to it.
func (d *CashDesk) Reject(id int64) (models.CashRequest, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.CashRequest{}, err
	}
	d.scan.CancelSubject(cashRef(id))
	done := copyCash(*r)
	d.remove(id)
	return done, nil
}

func (d *CashDesk) Revert(id int64) (models.CashRequest, error) {
	r, err := d.mustFind(id)
	if err != nil {
		return models.CashRequest{}, err
	}
	if r.Status == domain.CashPending {
		return models.CashRequest{}, cashConflict(r, "revert")
	}
	d.scan.CancelSubject(cashRef(id))
	r.Status = domain.CashPending
	r.Payload = nil
	return copyCash(*r), nil
}

// Abandon returns a request whose session was cancelled to pending.
func (d *CashDesk) Abandon(id int64) {
	if r := d.find(id); r != nil {
		r.Status = domain.CashPending
		r.Payload = nil
	}
}

func (d *CashDesk) Clear() {
	d.requests = nil
}

func (d *CashDesk) find(id int64) *models.CashRequest {
	for _, r := range d.requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (d *CashDesk) mustFind(id int64) (*models.CashRequest, error) {
	r := d.find(id)
	if r == nil {
		return nil, domain.NotFoundError{Resource: "cash_request", ID: id}
	}
	return r, nil
}

func (d *CashDesk) remove(id int64) {
	for i, r := range d.requests {
		if r.ID == id {
			d.requests = append(d.requests[:i], d.requests[i+1:]...)
			return
		}
	}
}

func cashRef(id int64) models.SubjectRef {
	return models.SubjectRef{Kind: domain.SubjectCash, ID: id}
}

func cashConflict(r *models.CashRequest, op string) error {
	return domain.ConflictError{
		Resource: "cash_request",
		Msg:      fmt.Sprintf("%s not allowed for cash request %d in status %s", op, r.ID, r.Status),
	}
}

func copyCash(r models.CashRequest) models.CashRequest {
	if r.Payload != nil {
		pl := *r.Payload
		r.Payload = &pl
	}
	return r
}
