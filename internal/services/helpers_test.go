package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"driverdesk/internal/domain/models"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func testRoutes() []models.Route {
	return []models.Route{
		{
			ID: "247",
			Stops: []models.Stop{
				{ID: 0, Name: "Depot", Time: "08:00"},
				{ID: 1, Name: "Market", Time: "08:10"},
				{ID: 2, Name: "School", Time: "08:20"},
				{ID: 3, Name: "Station", Time: "08:35"},
			},
			WalkupFare:  320,
			FarePerStop: 100,
		},
		{
			ID: "248",
			Stops: []models.Stop{
				{ID: 0, Name: "Harbour", Time: "09:00"},
				{ID: 1, Name: "Hospital", Time: "09:15"},
			},
			WalkupFare: 400,
		},
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *clock { return &clock{now: at} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memJournal struct {
	txs []models.Transaction
	err error
}

func (j *memJournal) Append(_ context.Context, tx models.Transaction) error {
	if j.err != nil {
		return j.err
	}
	j.txs = append(j.txs, tx)
	return nil
}

var errJournalDown = errors.New("journal down")

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *recordingSink) Publish(ev models.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func booking(id int64, name string, from, to, party int, amount int64) models.Booking {
	return models.Booking{ID: id, PassengerName: name, FromStop: from, ToStop: to, PartySize: party, Amount: amount}
}

func matched(sum int64) models.ScanOutcome {
	return models.ScanOutcome{Matched: true, Payload: &models.QRPayload{Sum: sum, Recipient: "driver", CreatedAt: t0}}
}

func sumLedger(txs []models.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
