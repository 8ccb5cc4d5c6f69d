package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/http/middleware"
	"driverdesk/internal/utils"

	"github.com/gin-gonic/gin"
)

type loadBookingsRequest struct {
	Bookings []models.Booking `json:"bookings"`
}

type syncBookingsRequest struct {
	Date string `json:"date"`
}

type walkupRequest struct {
	PassengerName string `json:"passenger_name"`
	PartySize     int    `json:"party_size"`
	Amount        int64  `json:"amount"`
}

type subjectRequest struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type scanResultRequest struct {
	Matched bool              `json:"matched"`
	Token   string            `json:"token"`
	Payload *models.QRPayload `json:"payload"`
}

// LoadBookings feeds an explicit reservation list into the core.
func (a *API) LoadBookings(c *gin.Context) {
	var req loadBookingsRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if len(req.Bookings) == 0 {
		RespondDomainError(c, domain.ValidationError{Field: "bookings", Msg: "at least one booking is required"})
		return
	}
	snap, err := a.Core.LoadBookings(c.Request.Context(), req.Bookings)
	a.respondSnapshot(c, snap, err)
}

// SyncBookings pulls today's (or {"date"}) reservations for the current route
// from the database. Rows already seen this trip are skipped by the core.
func (a *API) SyncBookings(c *gin.Context) {
	if a.Reservations == nil {
		respondError(c, http.StatusServiceUnavailable, "no_reservation_feed", "reservation feed not configured", nil)
		return
	}
	var req syncBookingsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	day := utils.StartOfDay(a.now())
	if strings.TrimSpace(req.Date) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
		if err != nil {
			RespondDomainError(c, domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err})
			return
		}
		day = d
	}

	current := a.Core.Snapshot()
	if current.RouteID == "" {
		RespondDomainError(c, domain.ValidationError{Field: "route_id", Msg: "select a route first"})
		return
	}
	rows, err := a.Reservations.ListForRoute(c.Request.Context(), current.RouteID, day)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	utils.LogEvent(middleware.GetRequestID(c), "bookings", "sync", fmt.Sprintf("route=%s rows=%d", current.RouteID, len(rows)))
	snap, err := a.Core.SyncBookings(c.Request.Context(), rows)
	a.respondSnapshot(c, snap, err)
}

func (a *API) AcceptBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	snap, err := a.Core.AcceptBooking(c.Request.Context(), id)
	a.respondSnapshot(c, snap, err)
}

func (a *API) EnqueueWalkup(c *gin.Context) {
	var req walkupRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	snap, err := a.Core.EnqueueWalkup(c.Request.Context(), req.PassengerName, req.PartySize, req.Amount)
	a.respondSnapshot(c, snap, err)
}

// BeginScan opens the scanner for {"kind","id"}. For the walk-up line id 0 means
// the next candidate.
func (a *API) BeginScan(c *gin.Context) {
	var req subjectRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	kind, err := domain.ParseSubjectKind(req.Kind)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	snap, err := a.Core.BeginScan(c.Request.Context(), models.SubjectRef{Kind: kind, ID: req.ID})
	a.respondSnapshot(c, snap, err)
}

// ScanResult accepts either a raw QR token, verified here, or an explicit outcome.
func (a *API) ScanResult(c *gin.Context) {
	var req scanResultRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	outcome := models.ScanOutcome{Matched: req.Matched, Payload: req.Payload}
	if strings.TrimSpace(req.Token) != "" {
		outcome = a.Issuer.Outcome(req.Token)
	}
	if outcome.Matched && outcome.Payload == nil {
		RespondDomainError(c, domain.ValidationError{Field: "payload", Msg: "a matched outcome needs a payload"})
		return
	}
	snap, err := a.Core.ScanResult(c.Request.Context(), c.Param("session"), outcome)
	a.respondSnapshot(c, snap, err)
}

func (a *API) CancelScan(c *gin.Context) {
	snap, err := a.Core.CancelScan(c.Request.Context(), c.Param("session"))
	a.respondSnapshot(c, snap, err)
}

func (a *API) Confirm(c *gin.Context) {
	subject, ok := subjectFromPath(c)
	if !ok {
		return
	}
	snap, err := a.Core.Confirm(c.Request.Context(), subject)
	a.respondSnapshot(c, snap, err)
}

func (a *API) Reject(c *gin.Context) {
	subject, ok := subjectFromPath(c)
	if !ok {
		return
	}
	snap, err := a.Core.Reject(c.Request.Context(), subject)
	a.respondSnapshot(c, snap, err)
}

func (a *API) Revert(c *gin.Context) {
	subject, ok := subjectFromPath(c)
	if !ok {
		return
	}
	snap, err := a.Core.Revert(c.Request.Context(), subject)
	a.respondSnapshot(c, snap, err)
}
