package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"
)

// Scanner is the QR scanner collaborator. It is called once per opened session,
// off the command path, and its outcome comes back through ScanResult.
type Scanner interface {
	Scan(ctx context.Context, session models.ScanSession) (models.ScanOutcome, error)
}

// SnapshotSink receives the snapshot after every successful command. Publish must not block.
type SnapshotSink interface {
	Publish(ev models.Event)
}

// CoreState is the whole mutable state of one vehicle.
type CoreState struct {
	Trip     *TripMachine
	Seats    *SeatAllocator
	Scan     *ScanProtocol
	Bookings *BookingQueue
	Queue    *WalkupQueue
	Cash     *CashDesk
	Ledger   *Ledger
}

func NewCoreState(routes []models.Route, capacity int, prepWindow time.Duration, ledger *Ledger) *CoreState {
	seats := NewSeatAllocator(capacity)
	scan := NewScanProtocol()
	return &CoreState{
		Trip:     NewTripMachine(routes, prepWindow),
		Seats:    seats,
		Scan:     scan,
		Bookings: NewBookingQueue(seats, scan, ledger),
		Queue:    NewWalkupQueue(seats, scan, ledger),
		Cash:     NewCashDesk(seats, scan, ledger),
		Ledger:   ledger,
	}
}

type CoreOptions struct {
	Routes     []models.Route
	Capacity   int
	PrepWindow time.Duration
	Journal    TransactionJournal
	Scanner    Scanner
	Sinks      []SnapshotSink
	Now        func() time.Time
}

// CoreService is the command surface of the driver console. Every command is
// serialized and answers with a fresh snapshot or a typed domain error.
type CoreService struct {
	mu      sync.Mutex
	state   *CoreState
	scanner Scanner
	sinks   []SnapshotSink
	now     func() time.Time
}

func NewCoreService(opts CoreOptions) *CoreService {
	now := opts.Now
	if now == nil {
		now = utils.NowUTC
	}
	ledger := NewLedger(opts.Journal, now)
	return &CoreService{
		state:   NewCoreState(opts.Routes, opts.Capacity, opts.PrepWindow, ledger),
		scanner: opts.Scanner,
		sinks:   opts.Sinks,
		now:     now,
	}
}

// AddSink registers another snapshot consumer.
func (s *CoreService) AddSink(sink SnapshotSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

func (s *CoreService) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(nil)
}

func (s *CoreService) Routes() []models.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Trip.Routes()
}

// ---- trip lifecycle ----

func (s *CoreService) SelectRoute(ctx context.Context, routeID string) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionSelectRoute, func() (*models.SubjectRef, error) {
		return nil, s.state.Trip.SelectRoute(routeID)
	})
}

func (s *CoreService) ToggleDirection(ctx context.Context) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionToggleDirection, func() (*models.SubjectRef, error) {
		return nil, s.state.Trip.ToggleDirection()
	})
}

func (s *CoreService) StartShift(ctx context.Context, routeID string) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionStartShift, func() (*models.SubjectRef, error) {
		return nil, s.state.Trip.StartShift(routeID, s.now())
	})
}

func (s *CoreService) StartBoarding(ctx context.Context) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionStartBoarding, func() (*models.SubjectRef, error) {
		return nil, s.state.Trip.StartBoarding()
	})
}

func (s *CoreService) ReadyForRoute(ctx context.Context) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionReadyForRoute, func() (*models.SubjectRef, error) {
		return nil, s.state.Trip.ReadyForRoute()
	})
}

// StartRoute departs. Boarding is over, so an open booking or walk-up session is
// cancelled and its subject goes back to where it was before the scan.
func (s *CoreService) StartRoute(ctx context.Context) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionStartRoute, func() (*models.SubjectRef, error) {
		if err := s.state.Trip.StartRoute(); err != nil {
			return nil, err
		}
		if active, ok := s.state.Scan.Active(); ok && active.Subject.Kind != domain.SubjectCash {
			s.cancelSession(ctx, active)
		}
		return nil, nil
	})
}

// Finish ends the trip: scanner reset, seats released, lines cleared. The ledger stays.
func (s *CoreService) Finish(ctx context.Context) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionFinish, func() (*models.SubjectRef, error) {
		if err := s.state.Trip.Finish(); err != nil {
			return nil, err
		}
		if dropped, ok := s.state.Scan.Reset(); ok {
			utils.LogEventCtx(ctx, "scan", "cancel", "session="+dropped.ID+" dropped on finish")
		}
		s.state.Seats.ReleaseAll()
		s.state.Bookings.Clear()
		s.state.Queue.Clear()
		s.state.Cash.Clear()
		return nil, nil
	})
}

// ---- admission ----

func (s *CoreService) LoadBookings(ctx context.Context, bookings []models.Booking) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionLoadBookings, func() (*models.SubjectRef, error) {
		if err := s.gate(domain.ActionLoadBookings, domain.PhasePreparing, domain.PhaseBoarding); err != nil {
			return nil, err
		}
		route, _ := s.state.Trip.Route()
		loaded, err := s.state.Bookings.Load(bookings, route)
		if err != nil {
			return nil, err
		}
		utils.LogEventCtx(ctx, "bookings", "load", fmt.Sprintf("loaded=%d route=%s", len(loaded), route.ID))
		return nil, nil
	})
}

// SyncBookings loads the feed rows not seen yet this trip and skips the rest.
func (s *CoreService) SyncBookings(ctx context.Context, rows []models.Booking) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionLoadBookings, func() (*models.SubjectRef, error) {
		if err := s.gate(domain.ActionLoadBookings, domain.PhasePreparing, domain.PhaseBoarding); err != nil {
			return nil, err
		}
		fresh := make([]models.Booking, 0, len(rows))
		for _, b := range rows {
			if !s.state.Bookings.Known(b.ID) {
				fresh = append(fresh, b)
			}
		}
		route, _ := s.state.Trip.Route()
		if len(fresh) > 0 {
			if _, err := s.state.Bookings.Load(fresh, route); err != nil {
				return nil, err
			}
		}
		utils.LogEventCtx(ctx, "bookings", "sync", fmt.Sprintf("rows=%d new=%d route=%s", len(rows), len(fresh), route.ID))
		return nil, nil
	})
}

func (s *CoreService) EnqueueWalkup(ctx context.Context, name string, partySize int, amount int64) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionEnqueueWalkup, func() (*models.SubjectRef, error) {
		if err := s.gate(domain.ActionEnqueueWalkup, domain.PhasePreparing, domain.PhaseBoarding, domain.PhaseReadyForRoute); err != nil {
			return nil, err
		}
		route, _ := s.state.Trip.Route()
		_, err := s.state.Queue.Enqueue(name, partySize, amount, route)
		return nil, err
	})
}

func (s *CoreService) AcceptBooking(ctx context.Context, id int64) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionAcceptBooking, func() (*models.SubjectRef, error) {
		if err := s.gateAdmission(domain.ActionAcceptBooking); err != nil {
			return nil, err
		}
		_, err := s.state.Bookings.Accept(id)
		return nil, err
	})
}

// BeginScan opens the scanner for a booking, a walk-up (id 0 = next in line) or a
// pending cash request.
func (s *CoreService) BeginScan(ctx context.Context, subject models.SubjectRef) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionBeginScan, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionBeginScan, subject.Kind); err != nil {
			return nil, err
		}
		now := s.now()
		var (
			session models.ScanSession
			err     error
		)
		switch subject.Kind {
		case domain.SubjectBooking:
			session, err = s.state.Bookings.BeginScan(subject.ID, now)
		case domain.SubjectQueue:
			session, err = s.state.Queue.BeginScan(subject.ID, now)
		case domain.SubjectCash:
			session, err = s.state.Cash.BeginScan(subject.ID, now)
		default:
			err = unknownSubject(subject)
		}
		if err != nil {
			return nil, err
		}
		s.dispatchScan(ctx, session)
		return nil, nil
	})
}

// ScanResult delivers the scanner's verdict. Results for a session that is no
// longer scanning are logged and returned as StaleSessionError with no effect.
func (s *CoreService) ScanResult(ctx context.Context, sessionID string, outcome models.ScanOutcome) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionScanResult, func() (*models.SubjectRef, error) {
		active, ok := s.state.Scan.Active()
		if !ok || active.ID != sessionID || active.Phase != domain.ScanScanning {
			return nil, domain.StaleSessionError{SessionID: sessionID}
		}

		reason := domain.ReasonQRNotFound
		if outcome.Matched && outcome.Payload != nil && outcome.Payload.Sum != 0 && outcome.Payload.Sum != active.Amount {
			utils.LogEventCtx(ctx, "scan", "mismatch", fmt.Sprintf("session=%s want=%d got=%d", sessionID, active.Amount, outcome.Payload.Sum))
			outcome = models.ScanOutcome{Matched: false}
			reason = domain.ReasonQRMismatch
		}
		if _, err := s.state.Scan.Resolve(sessionID, outcome); err != nil {
			return nil, err
		}

		subject := active.Subject
		switch subject.Kind {
		case domain.SubjectBooking:
			if outcome.Matched {
				_, err := s.state.Bookings.OnScanMatched(subject.ID, outcome.Payload)
				return nil, err
			}
			next, err := s.state.Bookings.OnScanNotFound(subject.ID, reason)
			if err != nil || next == nil {
				return nil, err
			}
			return &models.SubjectRef{Kind: domain.SubjectBooking, ID: *next}, nil
		case domain.SubjectQueue:
			if outcome.Matched {
				_, err := s.state.Queue.OnScanMatched(subject.ID, outcome.Payload)
				return nil, err
			}
			next, err := s.state.Queue.OnScanNotFound(subject.ID)
			if err != nil || next == nil {
				return nil, err
			}
			return &models.SubjectRef{Kind: domain.SubjectQueue, ID: *next}, nil
		case domain.SubjectCash:
			if outcome.Matched {
				_, err := s.state.Cash.OnScanMatched(subject.ID, outcome.Payload)
				return nil, err
			}
			return nil, s.state.Cash.OnScanNotFound(subject.ID)
		default:
			return nil, unknownSubject(subject)
		}
	})
}

// CancelScan is the operator walking away from the scanner. The subject returns
// to its pre-scan status; a late result for the session is stale.
func (s *CoreService) CancelScan(ctx context.Context, sessionID string) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionCancelScan, func() (*models.SubjectRef, error) {
		active, ok := s.state.Scan.Active()
		if !ok || active.ID != sessionID {
			return nil, domain.StaleSessionError{SessionID: sessionID}
		}
		s.cancelSession(ctx, active)
		return nil, nil
	})
}

// Confirm commits the payment of a matched subject: seats first, then the ledger.
func (s *CoreService) Confirm(ctx context.Context, subject models.SubjectRef) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionConfirm, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionConfirm, subject.Kind); err != nil {
			return nil, err
		}
		tripID := s.state.Trip.Trip().ID
		var (
			seatIDs []int
			err     error
		)
		switch subject.Kind {
		case domain.SubjectBooking:
			_, seatIDs, err = s.state.Bookings.Confirm(ctx, subject.ID, tripID)
		case domain.SubjectQueue:
			_, seatIDs, err = s.state.Queue.Accept(ctx, subject.ID, tripID)
		case domain.SubjectCash:
			_, _, seatIDs, err = s.state.Cash.Confirm(ctx, subject.ID, tripID)
		default:
			err = unknownSubject(subject)
		}
		if err != nil {
			return nil, err
		}
		utils.LogEventCtx(ctx, string(subject.Kind), "confirm", fmt.Sprintf("id=%d seats=%v", subject.ID, seatIDs))
		return nil, nil
	})
}

// Reject removes the subject without seating or payment. For bookings and
// walk-ups that had been through the scanner the next candidate may be scanned
// right away; the returned snapshot carries it as Candidate.
func (s *CoreService) Reject(ctx context.Context, subject models.SubjectRef) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionReject, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionReject, subject.Kind); err != nil {
			return nil, err
		}
		now := s.now()
		var (
			promoted *models.ScanSession
			err      error
		)
		switch subject.Kind {
		case domain.SubjectBooking:
			_, promoted, err = s.state.Bookings.Reject(subject.ID, now)
		case domain.SubjectQueue:
			_, promoted, err = s.state.Queue.Reject(subject.ID, now)
		case domain.SubjectCash:
			_, err = s.state.Cash.Reject(subject.ID)
		default:
			err = unknownSubject(subject)
		}
		if err != nil {
			return nil, err
		}
		if promoted == nil {
			return nil, nil
		}
		utils.LogEventCtx(ctx, string(subject.Kind), "promote", fmt.Sprintf("rejected=%d next=%d session=%s", subject.ID, promoted.Subject.ID, promoted.ID))
		s.dispatchScan(ctx, *promoted)
		next := promoted.Subject
		return &next, nil
	})
}

func (s *CoreService) Revert(ctx context.Context, subject models.SubjectRef) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionRevert, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionRevert, subject.Kind); err != nil {
			return nil, err
		}
		var err error
		switch subject.Kind {
		case domain.SubjectBooking:
			_, err = s.state.Bookings.Revert(subject.ID)
		case domain.SubjectQueue:
			_, err = s.state.Queue.Revert(subject.ID)
		case domain.SubjectCash:
			_, err = s.state.Cash.Revert(subject.ID)
		default:
			err = unknownSubject(subject)
		}
		return nil, err
	})
}

// ---- cash ----

type CashInput struct {
	Amount       int64
	PartySize    int
	Counterparty string
	FromStop     int
	ToStop       int
}

func (s *CoreService) CollectCash(ctx context.Context, in CashInput) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionCollectCash, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionCollectCash, domain.SubjectCash); err != nil {
			return nil, err
		}
		route, _ := s.state.Trip.Route()
		_, session, err := s.state.Cash.Collect(in.Amount, in.PartySize, in.Counterparty, in.FromStop, in.ToStop, route, s.now())
		if err != nil {
			return nil, err
		}
		s.dispatchScan(ctx, session)
		return nil, nil
	})
}

func (s *CoreService) Settle(ctx context.Context, person string, action domain.SettlementAction, amount int64, via string) (models.Snapshot, error) {
	return s.run(ctx, domain.ActionSettle, func() (*models.SubjectRef, error) {
		if err := s.gateSubject(domain.ActionSettle, domain.SubjectCash); err != nil {
			return nil, err
		}
		_, session, err := s.state.Cash.Settle(person, action, amount, via, s.now())
		if err != nil {
			return nil, err
		}
		s.dispatchScan(ctx, session)
		return nil, nil
	})
}

// ---- ledger queries ----

func (s *CoreService) Balance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ledger.Balance()
}

func (s *CoreService) History(filter models.HistoryFilter) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ledger.History(filter)
}

func (s *CoreService) Income(period domain.Period) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ledger.Income(period)
}

// ManifestView is what the trip manifest renders.
type ManifestView struct {
	Trip         models.Trip
	Route        models.Route
	Stops        []models.Stop
	Seats        []models.Seat
	Transactions []models.Transaction
	Balance      int64
	GeneratedAt  time.Time
}

func (s *CoreService) Manifest() (ManifestView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip := s.state.Trip.Trip()
	if trip.ID == "" {
		return ManifestView{}, domain.ConflictError{Resource: "trip", Msg: "no active trip"}
	}
	route, _ := s.state.Trip.Route()
	return ManifestView{
		Trip:         trip,
		Route:        route,
		Stops:        s.state.Trip.Stops(),
		Seats:        s.state.Seats.Seats(),
		Transactions: s.state.Ledger.History(models.HistoryFilter{TripID: trip.ID}),
		Balance:      s.state.Ledger.Balance(),
		GeneratedAt:  s.now(),
	}, nil
}

// ---- internals ----

func (s *CoreService) run(ctx context.Context, action domain.Action, fn func() (*models.SubjectRef, error)) (models.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, err := fn()
	if err != nil {
		if domain.IsStaleSession(err) {
			utils.LogEventCtx(ctx, "core", string(action), "discarded: "+err.Error())
		} else {
			utils.LogEventCtx(ctx, "core", string(action), "rejected: "+err.Error())
		}
		return s.snapshot(nil), err
	}

	snap := s.snapshot(candidate)
	ev := models.Event{Action: action, RequestID: utils.RequestIDFrom(ctx), Snapshot: snap}
	for _, sink := range s.sinks {
		sink.Publish(ev)
	}
	return snap, nil
}

func (s *CoreService) gate(action domain.Action, phases ...domain.TripPhase) error {
	phase := s.state.Trip.Phase()
	for _, p := range phases {
		if p == phase {
			return nil
		}
	}
	return domain.IllegalTransitionError{From: phase, Attempted: action}
}

func (s *CoreService) gateAdmission(action domain.Action) error {
	return s.gate(action, domain.PhaseBoarding, domain.PhaseReadyForRoute)
}

func (s *CoreService) gateSubject(action domain.Action, kind domain.SubjectKind) error {
	if kind == domain.SubjectCash {
		return s.gate(action, domain.PhasePreparing, domain.PhaseBoarding, domain.PhaseReadyForRoute, domain.PhaseInTransit)
	}
	return s.gateAdmission(action)
}

func (s *CoreService) cancelSession(ctx context.Context, active models.ScanSession) {
	if _, err := s.state.Scan.Cancel(active.ID); err != nil {
		return
	}
	switch active.Subject.Kind {
	case domain.SubjectBooking:
		s.state.Bookings.Abandon(active.Subject.ID)
	case domain.SubjectQueue:
		s.state.Queue.Abandon(active.Subject.ID)
	case domain.SubjectCash:
		s.state.Cash.Abandon(active.Subject.ID)
	}
	utils.LogEventCtx(ctx, "scan", "cancel", fmt.Sprintf("session=%s subject=%s:%d", active.ID, active.Subject.Kind, active.Subject.ID))
}

// dispatchScan hands a fresh session to the scanner collaborator. Scanner errors
// count as "not found"; there is no retry.
func (s *CoreService) dispatchScan(ctx context.Context, session models.ScanSession) {
	if s.scanner == nil {
		return
	}
	reqID := utils.RequestIDFrom(ctx)
	go func() {
		bg := utils.WithRequestID(context.Background(), reqID)
		outcome, err := s.scanner.Scan(bg, session)
		if err != nil {
			utils.LogEvent(reqID, "scan", "scanner", "session="+session.ID+" error: "+err.Error())
			outcome = models.ScanOutcome{Matched: false}
		}
		_, _ = s.ScanResult(bg, session.ID, outcome)
	}()
}

func (s *CoreService) snapshot(candidate *models.SubjectRef) models.Snapshot {
	st := s.state
	trip := st.Trip.Trip()
	occupied := st.Seats.OccupiedCount()
	reserved := st.Bookings.Reserved()
	free := st.Seats.Capacity() - occupied - reserved
	if free < 0 {
		free = 0
	}

	snap := models.Snapshot{
		Phase:           trip.Phase,
		TripID:          trip.ID,
		RouteID:         trip.RouteID,
		Direction:       trip.Direction,
		Stops:           st.Trip.Stops(),
		Capacity:        st.Seats.Capacity(),
		Occupied:        occupied,
		Reserved:        reserved,
		Free:            free,
		Seats:           st.Seats.Seats(),
		PendingBookings: st.Bookings.Active(),
		BookingsByStop:  st.Bookings.ByStop(st.Trip.Stops()),
		Queue:           st.Queue.Entries(),
		CashRequests:    st.Cash.Requests(),
		LedgerBalance:   st.Ledger.Balance(),
		Candidate:       candidate,
	}
	if d, ok := st.Trip.Countdown(s.now()); ok {
		secs := int64(d / time.Second)
		snap.CountdownSeconds = &secs
		snap.Countdown = utils.FormatCountdown(d)
	}
	if next, ok := st.Queue.NextCandidate(); ok {
		id := next.ID
		snap.NextCandidate = &id
	}
	if active, ok := st.Scan.Active(); ok {
		snap.ActiveScan = &active
	}
	return snap
}

func unknownSubject(subject models.SubjectRef) error {
	return domain.ValidationError{Field: "kind", Msg: fmt.Sprintf("unknown subject kind %q", subject.Kind)}
}
