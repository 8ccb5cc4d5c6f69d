package services

import (
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"

	"github.com/google/uuid"
)

// ScanProtocol models the single physical scanner. At most one session holds it.
type ScanProtocol struct {
	active *models.ScanSession
}

func NewScanProtocol() *ScanProtocol {
	return &ScanProtocol{}
}

// Active returns a copy of the open session, if any.
func (p *ScanProtocol) Active() (models.ScanSession, bool) {
	if p.active == nil {
		return models.ScanSession{}, false
	}
	return copySession(*p.active), true
}

// ActiveFor reports whether the open session belongs to subject.
func (p *ScanProtocol) ActiveFor(subject models.SubjectRef) bool {
	return p.active != nil && p.active.Subject == subject
}

// Open starts scanning for subject. Fails with ScannerBusyError while another
// session is open.
func (p *ScanProtocol) Open(subject models.SubjectRef, amount int64, now time.Time) (models.ScanSession, error) {
	if p.active != nil && p.active.Phase.Open() {
		return models.ScanSession{}, domain.ScannerBusyError{SessionID: p.active.ID}
	}
	s := &models.ScanSession{
		ID:       uuid.NewString(),
		Subject:  subject,
		Amount:   amount,
		Phase:    domain.ScanScanning,
		OpenedAt: now,
	}
	p.active = s
	return copySession(*s), nil
}

// Resolve applies the scanner's outcome. Matched sessions wait for an operator
// decision; not-found sessions end and release the scanner.
func (p *ScanProtocol) Resolve(sessionID string, outcome models.ScanOutcome) (models.ScanSession, error) {
	if p.active == nil || p.active.ID != sessionID || p.active.Phase != domain.ScanScanning {
		return models.ScanSession{}, domain.StaleSessionError{SessionID: sessionID}
	}
	if outcome.Matched {
		p.active.Phase = domain.ScanAwaitingDecision
		if outcome.Payload != nil {
			pl := *outcome.Payload
			p.active.Payload = &pl
		}
		return copySession(*p.active), nil
	}
	done := copySession(*p.active)
	done.Phase = domain.ScanNotFound
	p.active = nil
	return done, nil
}

// Decide closes the awaiting-decision session of subject (accept, reject or revert).
func (p *ScanProtocol) Decide(subject models.SubjectRef) (models.ScanSession, error) {
	if p.active == nil || p.active.Subject != subject || p.active.Phase != domain.ScanAwaitingDecision {
		id := ""
		if p.active != nil {
			id = p.active.ID
		}
		return models.ScanSession{}, domain.StaleSessionError{SessionID: id}
	}
	done := copySession(*p.active)
	p.active = nil
	return done, nil
}

// Cancel abandons the open session (caller walked away). Late results for it are stale.
func (p *ScanProtocol) Cancel(sessionID string) (models.ScanSession, error) {
	if p.active == nil || p.active.ID != sessionID {
		return models.ScanSession{}, domain.StaleSessionError{SessionID: sessionID}
	}
	done := copySession(*p.active)
	done.Phase = domain.ScanIdle
	p.active = nil
	return done, nil
}

// CancelSubject abandons the open session if it belongs to subject.
func (p *ScanProtocol) CancelSubject(subject models.SubjectRef) bool {
	if !p.ActiveFor(subject) {
		return false
	}
	p.active = nil
	return true
}

// Reset drops any open session.
func (p *ScanProtocol) Reset() (models.ScanSession, bool) {
	if p.active == nil {
		return models.ScanSession{}, false
	}
	done := copySession(*p.active)
	p.active = nil
	return done, true
}

func copySession(s models.ScanSession) models.ScanSession {
	if s.Payload != nil {
		pl := *s.Payload
		s.Payload = &pl
	}
	return s
}
