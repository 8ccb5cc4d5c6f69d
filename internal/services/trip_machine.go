package services

import (
	"strings"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"

	"github.com/google/uuid"
)

// tripEdges lists the only legal phase transitions, keyed by the action that drives them.
var tripEdges = map[domain.Action]struct{ from, to domain.TripPhase }{
	domain.ActionStartShift:    {domain.PhaseIdle, domain.PhasePreparing},
	domain.ActionStartBoarding: {domain.PhasePreparing, domain.PhaseBoarding},
	domain.ActionReadyForRoute: {domain.PhaseBoarding, domain.PhaseReadyForRoute},
	domain.ActionStartRoute:    {domain.PhaseReadyForRoute, domain.PhaseInTransit},
	domain.ActionFinish:        {domain.PhaseInTransit, domain.PhaseIdle},
}

// TripMachine owns the trip phase, the selected route and its stop order.
type TripMachine struct {
	routes     map[string]models.Route
	order      []string
	prepWindow time.Duration

	trip  models.Trip
	stops []models.Stop
}

func NewTripMachine(catalogue []models.Route, prepWindow time.Duration) *TripMachine {
	if prepWindow <= 0 {
		prepWindow = 600 * time.Second
	}
	m := &TripMachine{
		routes:     make(map[string]models.Route, len(catalogue)),
		prepWindow: prepWindow,
		trip:       models.Trip{Phase: domain.PhaseIdle, Direction: domain.DirectionForward},
	}
	for _, r := range catalogue {
		m.routes[r.ID] = r
		m.order = append(m.order, r.ID)
	}
	return m
}

func (m *TripMachine) Phase() domain.TripPhase { return m.trip.Phase }

func (m *TripMachine) Trip() models.Trip { return m.trip }

// Routes returns the catalogue in configuration order.
func (m *TripMachine) Routes() []models.Route {
	out := make([]models.Route, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.routes[id])
	}
	return out
}

// Route returns the selected route, if any.
func (m *TripMachine) Route() (models.Route, bool) {
	r, ok := m.routes[m.trip.RouteID]
	return r, ok
}

// Stops returns the stop list in current travel order.
func (m *TripMachine) Stops() []models.Stop {
	out := make([]models.Stop, len(m.stops))
	copy(out, m.stops)
	return out
}

func (m *TripMachine) SelectRoute(routeID string) error {
	if m.trip.Phase != domain.PhaseIdle {
		return domain.IllegalTransitionError{From: m.trip.Phase, Attempted: domain.ActionSelectRoute}
	}
	routeID = strings.TrimSpace(routeID)
	r, ok := m.routes[routeID]
	if !ok {
		return domain.NotFoundError{Resource: "route", ID: routeID}
	}
	m.trip.RouteID = r.ID
	m.trip.Direction = domain.DirectionForward
	m.stops = append([]models.Stop(nil), r.Stops...)
	return nil
}

// ToggleDirection reverses the stop order in place.
func (m *TripMachine) ToggleDirection() error {
	if m.trip.Phase != domain.PhaseIdle {
		return domain.IllegalTransitionError{From: m.trip.Phase, Attempted: domain.ActionToggleDirection}
	}
	if m.trip.RouteID == "" {
		return domain.ValidationError{Field: "route_id", Msg: "select a route first"}
	}
	for i, j := 0, len(m.stops)-1; i < j; i, j = i+1, j-1 {
		m.stops[i], m.stops[j] = m.stops[j], m.stops[i]
	}
	if m.trip.Direction == domain.DirectionReversed {
		m.trip.Direction = domain.DirectionForward
	} else {
		m.trip.Direction = domain.DirectionReversed
	}
	return nil
}

// StartShift moves idle → preparing. An empty routeID keeps the selected route.
func (m *TripMachine) StartShift(routeID string, now time.Time) error {
	if err := m.check(domain.ActionStartShift); err != nil {
		return err
	}
	routeID = strings.TrimSpace(routeID)
	if routeID != "" && routeID != m.trip.RouteID {
		if err := m.SelectRoute(routeID); err != nil {
			return err
		}
	}
	if m.trip.RouteID == "" {
		return domain.ValidationError{Field: "route_id", Msg: "route is required to start a shift"}
	}
	m.trip.ID = uuid.NewString()
	m.trip.Deadline = now.Add(m.prepWindow)
	m.trip.Phase = domain.PhasePreparing
	return nil
}

func (m *TripMachine) StartBoarding() error {
	return m.advance(domain.ActionStartBoarding)
}

func (m *TripMachine) ReadyForRoute() error {
	return m.advance(domain.ActionReadyForRoute)
}

func (m *TripMachine) StartRoute() error {
	return m.advance(domain.ActionStartRoute)
}

// Finish returns to idle, clears the trip id and restores the forward stop order.
// The selected route is kept for the next shift.
func (m *TripMachine) Finish() error {
	if err := m.advance(domain.ActionFinish); err != nil {
		return err
	}
	m.trip.ID = ""
	m.trip.Deadline = time.Time{}
	m.trip.Direction = domain.DirectionForward
	if r, ok := m.routes[m.trip.RouteID]; ok {
		m.stops = append([]models.Stop(nil), r.Stops...)
	}
	return nil
}

// Countdown is deadline-now while preparing and zero otherwise. It may go negative
// and never moves the phase.
func (m *TripMachine) Countdown(now time.Time) (time.Duration, bool) {
	if m.trip.Phase != domain.PhasePreparing {
		return 0, false
	}
	return m.trip.Deadline.Sub(now), true
}

func (m *TripMachine) check(action domain.Action) error {
	edge, ok := tripEdges[action]
	if !ok || edge.from != m.trip.Phase {
		return domain.IllegalTransitionError{From: m.trip.Phase, Attempted: action}
	}
	return nil
}

func (m *TripMachine) advance(action domain.Action) error {
	if err := m.check(action); err != nil {
		return err
	}
	m.trip.Phase = tripEdges[action].to
	return nil
}
