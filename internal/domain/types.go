package domain

import "strings"

// TripPhase is the vehicle's operating phase.
type TripPhase string

const (
	PhaseIdle          TripPhase = "idle"
	PhasePreparing     TripPhase = "preparing"
	PhaseBoarding      TripPhase = "boarding"
	PhaseReadyForRoute TripPhase = "ready_for_route"
	PhaseInTransit     TripPhase = "in_transit"
)

func (p TripPhase) String() string { return string(p) }

// Action names a command on the driver console. Used for phase gating and logs.
type Action string

const (
	ActionStartShift      Action = "start_shift"
	ActionStartBoarding   Action = "start_boarding"
	ActionReadyForRoute   Action = "ready_for_route"
	ActionStartRoute      Action = "start_route"
	ActionFinish          Action = "finish"
	ActionSelectRoute     Action = "select_route"
	ActionToggleDirection Action = "toggle_direction"
	ActionLoadBookings    Action = "load_bookings"
	ActionEnqueueWalkup   Action = "enqueue_walkup"
	ActionAcceptBooking   Action = "accept_booking"
	ActionBeginScan       Action = "begin_scan"
	ActionScanResult      Action = "scan_result"
	ActionCancelScan      Action = "cancel_scan"
	ActionConfirm         Action = "confirm"
	ActionReject          Action = "reject"
	ActionRevert          Action = "revert"
	ActionCollectCash     Action = "collect_cash"
	ActionSettle          Action = "settle"
)

func (a Action) String() string { return string(a) }

type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionReversed Direction = "reversed"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
)

// ParsePaymentMethod accepts "", "cash" or "qr" (case-insensitive). Empty means any.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "", PaymentCash, PaymentQR:
		return m, nil
	default:
		return "", ValidationError{Field: "payment_method", Msg: "must be cash or qr"}
	}
}

type BookingStatus string

const (
	BookingPending      BookingStatus = "pending"
	BookingAccepted     BookingStatus = "accepted"
	BookingAwaitingScan BookingStatus = "awaiting_scan"
	BookingConfirmed    BookingStatus = "confirmed"
	BookingRejected     BookingStatus = "rejected"
)

// RejectReason explains why the scanner rejected a subject.
type RejectReason string

const (
	ReasonQRNotFound RejectReason = "qr_not_found"
	ReasonQRMismatch RejectReason = "qr_mismatch"
)

type QueueStatus string

const (
	QueueWaiting  QueueStatus = "waiting"
	QueueScanned  QueueStatus = "scanned"
	QueueNotFound QueueStatus = "not_found"
)

type CashKind string

const (
	CashReceiptRequest    CashKind = "receipt"
	CashSettlementRequest CashKind = "settlement"
)

type CashStatus string

const (
	CashPending          CashStatus = "pending"
	CashAwaitingScan     CashStatus = "awaiting_scan"
	CashAwaitingDecision CashStatus = "awaiting_decision"
)

// SettlementAction is the direction of a driver/dispatcher settlement.
type SettlementAction string

const (
	SettlementDebit  SettlementAction = "debit"
	SettlementCredit SettlementAction = "credit"
)

func ParseSettlementAction(s string) (SettlementAction, error) {
	a := SettlementAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case SettlementDebit, SettlementCredit:
		return a, nil
	default:
		return "", ValidationError{Field: "action", Msg: "must be debit or credit"}
	}
}

// SubjectKind identifies what a scan session is about.
type SubjectKind string

const (
	SubjectBooking SubjectKind = "booking"
	SubjectQueue   SubjectKind = "queue"
	SubjectCash    SubjectKind = "cash"
)

func ParseSubjectKind(s string) (SubjectKind, error) {
	k := SubjectKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case SubjectBooking, SubjectQueue, SubjectCash:
		return k, nil
	default:
		return "", ValidationError{Field: "kind", Msg: "must be booking, queue or cash"}
	}
}

type ScanPhase string

const (
	ScanIdle             ScanPhase = "idle"
	ScanScanning         ScanPhase = "scanning"
	ScanMatched          ScanPhase = "matched"
	ScanNotFound         ScanPhase = "not_found"
	ScanAwaitingDecision ScanPhase = "awaiting_decision"
)

// Open reports whether a session in this phase holds the scanner.
func (p ScanPhase) Open() bool {
	return p == ScanScanning || p == ScanMatched || p == ScanAwaitingDecision
}

type TransactionKind string

const (
	TxBookingFare      TransactionKind = "booking_fare"
	TxQueueFare        TransactionKind = "queue_fare"
	TxCashReceipt      TransactionKind = "cash_receipt"
	TxSettlementDebit  TransactionKind = "settlement_debit"
	TxSettlementCredit TransactionKind = "settlement_credit"
)

// ParseTransactionKind accepts an empty string (any kind) or one of the ledger kinds.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "", TxBookingFare, TxQueueFare, TxCashReceipt, TxSettlementDebit, TxSettlementCredit:
		return k, nil
	default:
		return "", ValidationError{Field: "kind", Msg: "unknown transaction kind"}
	}
}

// Period selects a ledger history window relative to now.
type Period string

const (
	PeriodAll       Period = "all"
	PeriodDay       Period = "day"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodMonth     Period = "month"
)

// ParsePeriod accepts "today" as an alias for day; empty means all.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PeriodAll, nil
	case "today":
		return PeriodDay, nil
	case PeriodAll, PeriodDay, PeriodYesterday, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", ValidationError{Field: "period", Msg: "must be all, today, yesterday, week or month"}
	}
}
