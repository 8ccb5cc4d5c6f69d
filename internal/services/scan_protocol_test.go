package services

import (
	"testing"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
)

func TestScanProtocolSingleSession(t *testing.T) {
	p := NewScanProtocol()
	a := models.SubjectRef{Kind: domain.SubjectBooking, ID: 1}
	b := models.SubjectRef{Kind: domain.SubjectBooking, ID: 2}

	first, err := p.Open(a, 320, t0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Open(b, 320, t0); !domain.IsScannerBusy(err) {
		t.Fatalf("second open: %v", err)
	}

	got, err := p.Resolve(first.ID, matched(320))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Phase != domain.ScanAwaitingDecision || got.Payload == nil {
		t.Fatalf("unexpected session: %+v", got)
	}
	if _, err := p.Open(b, 320, t0); !domain.IsScannerBusy(err) {
		t.Fatalf("open while awaiting decision: %v", err)
	}
	if _, err := p.Decide(a); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, ok := p.Active(); ok {
		t.Fatalf("session still active after decision")
	}
}

func TestScanProtocolNotFoundReleasesScanner(t *testing.T) {
	p := NewScanProtocol()
	s, _ := p.Open(models.SubjectRef{Kind: domain.SubjectQueue, ID: 1}, 100, t0)

	done, err := p.Resolve(s.ID, models.ScanOutcome{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if done.Phase != domain.ScanNotFound {
		t.Fatalf("phase = %s", done.Phase)
	}
	if _, ok := p.Active(); ok {
		t.Fatalf("not found session still holds the scanner")
	}
	if _, err := p.Resolve(s.ID, matched(100)); !domain.IsStaleSession(err) {
		t.Fatalf("second resolve: %v", err)
	}
}

func TestScanProtocolCancelMakesLateResultStale(t *testing.T) {
	p := NewScanProtocol()
	s, _ := p.Open(models.SubjectRef{Kind: domain.SubjectCash, ID: 7}, 50, t0)

	if _, err := p.Cancel(s.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := p.Resolve(s.ID, matched(50)); !domain.IsStaleSession(err) {
		t.Fatalf("late result: %v", err)
	}
	if _, err := p.Cancel("nope"); !domain.IsStaleSession(err) {
		t.Fatalf("cancel unknown: %v", err)
	}
	if _, err := p.Decide(models.SubjectRef{Kind: domain.SubjectCash, ID: 7}); !domain.IsStaleSession(err) {
		t.Fatalf("decide without session: %v", err)
	}
}

func TestScanProtocolCancelSubjectAndReset(t *testing.T) {
	p := NewScanProtocol()
	ref := models.SubjectRef{Kind: domain.SubjectBooking, ID: 3}
	_, _ = p.Open(ref, 10, t0)

	if p.CancelSubject(models.SubjectRef{Kind: domain.SubjectBooking, ID: 4}) {
		t.Fatalf("cancelled someone else's session")
	}
	if !p.ActiveFor(ref) {
		t.Fatalf("session lost")
	}
	if _, ok := p.Reset(); !ok {
		t.Fatalf("reset found nothing")
	}
	if _, ok := p.Reset(); ok {
		t.Fatalf("second reset found a session")
	}
}
