package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	intconfig "driverdesk/internal/config"
	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	h "driverdesk/internal/http/handlers"
	"driverdesk/internal/qrpay"
	"driverdesk/internal/services"

	"github.com/gin-gonic/gin"
)

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeReservations struct {
	rows    []models.Booking
	routeID string
	day     time.Time
}

func (f *fakeReservations) ListForRoute(_ context.Context, routeID string, day time.Time) ([]models.Booking, error) {
	f.routeID = routeID
	f.day = day
	return f.rows, nil
}

type fakeJournal struct {
	tripID string
	limit  int
}

func (f *fakeJournal) List(_ context.Context, tripID string, limit int) ([]models.Transaction, error) {
	f.tripID = tripID
	f.limit = limit
	return []models.Transaction{{ID: "tx-1", Kind: domain.TxQueueFare, Amount: 320}}, nil
}

type testServer struct {
	r            *gin.Engine
	core         *services.CoreService
	reservations *fakeReservations
	journal      *fakeJournal
}

func newTestServer(t *testing.T, capacity int) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core := services.NewCoreService(services.CoreOptions{
		Routes:   intconfig.DefaultRoutes(),
		Capacity: capacity,
		Now:      func() time.Time { return testNow },
	})
	res := &fakeReservations{}
	jr := &fakeJournal{}
	a := &h.API{
		Core:         core,
		Issuer:       qrpay.NewIssuer("test-secret", time.Hour),
		Reservations: res,
		Journal:      jr,
		DriverName:   "Driver Petrov",
		Now:          func() time.Time { return testNow },
	}
	return testServer{r: NewRouter(intconfig.Env{}, a, nil), core: core, reservations: res, journal: jr}
}

func (s testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) models.Snapshot {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var snap models.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder, status int) h.ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d body=%s", w.Code, status, w.Body.String())
	}
	var resp h.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp
}

func TestBookingAdmissionOverHTTP(t *testing.T) {
	s := newTestServer(t, 6)

	resp := decodeError(t, s.do(t, http.MethodPost, "/api/trip/start-boarding", ""), http.StatusConflict)
	if resp.Code != "illegal_transition" {
		t.Fatalf("code = %q", resp.Code)
	}

	snap := decodeSnapshot(t, s.do(t, http.MethodPost, "/api/trip/start-shift", `{"route_id":"247"}`))
	if snap.Phase != domain.PhasePreparing || snap.TripID == "" || snap.Countdown != "10:00" {
		t.Fatalf("after start shift: %+v", snap)
	}
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/bookings",
		`{"bookings":[{"id":1,"passenger_name":"Anna","from_stop":0,"to_stop":2,"party_size":1,"amount":200}]}`))
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/trip/start-boarding", ""))
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/bookings/1/accept", ""))

	snap = decodeSnapshot(t, s.do(t, http.MethodPost, "/api/scan", `{"kind":"booking","id":1}`))
	if snap.ActiveScan == nil {
		t.Fatalf("no active scan session")
	}
	sessionID := snap.ActiveScan.ID

	w := s.do(t, http.MethodPost, "/api/qr/issue", `{"sum":200}`)
	var issued struct {
		Token     string `json:"token"`
		Recipient string `json:"recipient"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil || issued.Token == "" {
		t.Fatalf("issue: %v body=%s", err, w.Body.String())
	}
	if issued.Recipient != "Driver Petrov" {
		t.Fatalf("recipient = %q", issued.Recipient)
	}

	body := `{"token":"` + issued.Token + `"}`
	snap = decodeSnapshot(t, s.do(t, http.MethodPost, "/api/scan/"+sessionID+"/result", body))
	if snap.ActiveScan == nil || snap.ActiveScan.Phase != domain.ScanAwaitingDecision {
		t.Fatalf("after result: %+v", snap.ActiveScan)
	}

	w = s.do(t, http.MethodPost, "/api/scan/"+sessionID+"/result", body)
	var discarded struct {
		Discarded bool `json:"discarded"`
	}
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &discarded) != nil || !discarded.Discarded {
		t.Fatalf("duplicate result: %d %s", w.Code, w.Body.String())
	}

	snap = decodeSnapshot(t, s.do(t, http.MethodPost, "/api/subjects/booking/1/confirm", ""))
	if snap.Occupied != 1 || snap.LedgerBalance != 200 || snap.ActiveScan != nil {
		t.Fatalf("after confirm: occupied=%d balance=%d", snap.Occupied, snap.LedgerBalance)
	}

	decodeError(t, s.do(t, http.MethodPost, "/api/subjects/booking/1/reject", ""), http.StatusNotFound)

	w = s.do(t, http.MethodGet, "/api/ledger/history?kind=booking_fare&method=qr", "")
	var hist struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int64                `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil || hist.Total != 200 || len(hist.Transactions) != 1 {
		t.Fatalf("history: %v %s", err, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/ledger/receipts/"+hist.Transactions[0].ID, "")
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("receipt: %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/trip/manifest", "")
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("manifest: %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "MANIFEST_247") {
		t.Fatalf("content-disposition = %q", cd)
	}
}

func TestScannerErrorsMapToConflicts(t *testing.T) {
	s := newTestServer(t, 1)
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/trip/start-shift", `{"route_id":"247"}`))
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/trip/start-boarding", ""))
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/queue", `{"passenger_name":"A","party_size":1}`))
	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/queue", `{"passenger_name":"B","party_size":1}`))

	snap := decodeSnapshot(t, s.do(t, http.MethodPost, "/api/scan", `{"kind":"queue","id":0}`))
	if snap.ActiveScan == nil || snap.ActiveScan.Amount != 320 {
		t.Fatalf("walk-up session: %+v", snap.ActiveScan)
	}

	resp := decodeError(t, s.do(t, http.MethodPost, "/api/cash/collect", `{"amount":100,"party_size":0,"counterparty":"Dispatcher"}`), http.StatusConflict)
	if resp.Code != "scanner_busy" {
		t.Fatalf("code = %q", resp.Code)
	}

	decodeError(t, s.do(t, http.MethodPost, "/api/scan", `{"kind":"bogus","id":1}`), http.StatusBadRequest)
	decodeError(t, s.do(t, http.MethodPost, "/api/subjects/queue/x/confirm", ""), http.StatusBadRequest)
	decodeError(t, s.do(t, http.MethodPost, "/api/bookings", ""), http.StatusBadRequest)
	decodeError(t, s.do(t, http.MethodGet, "/api/ledger/history?period=year", ""), http.StatusBadRequest)

	snap = decodeSnapshot(t, s.do(t, http.MethodPost, "/api/scan/"+snap.ActiveScan.ID+"/result", `{"matched":false}`))
	if snap.Candidate == nil || snap.Candidate.Kind != domain.SubjectQueue || snap.Candidate.ID != 2 {
		t.Fatalf("candidate = %+v", snap.Candidate)
	}
	if snap = decodeSnapshot(t, s.do(t, http.MethodGet, "/api/state", "")); snap.Candidate != nil {
		t.Fatalf("candidate leaked into state: %+v", snap.Candidate)
	}
}

func TestSyncAndJournalUseRepositories(t *testing.T) {
	s := newTestServer(t, 6)
	s.reservations.rows = []models.Booking{
		{ID: 10, PassengerName: "Oleg", FromStop: 1, ToStop: 3, PartySize: 1},
	}

	decodeError(t, s.do(t, http.MethodPost, "/api/bookings/sync", ""), http.StatusBadRequest)

	decodeSnapshot(t, s.do(t, http.MethodPost, "/api/trip/start-shift", `{"route_id":"247"}`))
	snap := decodeSnapshot(t, s.do(t, http.MethodPost, "/api/bookings/sync", `{"date":"2026-03-11"}`))
	if len(snap.PendingBookings) != 1 || snap.PendingBookings[0].Amount != 200 {
		t.Fatalf("synced = %+v", snap.PendingBookings)
	}
	if s.reservations.routeID != "247" || s.reservations.day.Format("2006-01-02") != "2026-03-11" {
		t.Fatalf("feed queried with %s %s", s.reservations.routeID, s.reservations.day)
	}
	snap = decodeSnapshot(t, s.do(t, http.MethodPost, "/api/bookings/sync", ""))
	if len(snap.PendingBookings) != 1 {
		t.Fatalf("second sync duplicated rows: %+v", snap.PendingBookings)
	}

	w := s.do(t, http.MethodGet, "/api/ledger/journal?trip_id=t1&limit=5", "")
	if w.Code != http.StatusOK || s.journal.tripID != "t1" || s.journal.limit != 5 {
		t.Fatalf("journal: %d %s", w.Code, w.Body.String())
	}
	decodeError(t, s.do(t, http.MethodGet, "/api/ledger/journal?limit=-1", ""), http.StatusBadRequest)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, 6)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "rid-42")
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") != "rid-42" {
		t.Fatalf("health: %d rid=%q", w.Code, w.Header().Get("X-Request-ID"))
	}

	w = s.do(t, http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("no route: %d", w.Code)
	}
}
