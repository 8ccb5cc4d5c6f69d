package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/http/middleware"
	"driverdesk/internal/qrpay"
	"driverdesk/internal/services"
	"driverdesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ReservationSource is the reservation feed behind POST /api/bookings/sync.
type ReservationSource interface {
	ListForRoute(ctx context.Context, routeID string, day time.Time) ([]models.Booking, error)
}

// JournalReader reads the persisted ledger journal.
type JournalReader interface {
	List(ctx context.Context, tripID string, limit int) ([]models.Transaction, error)
}

// API holds what the console handlers need. Reservations and Journal are nil when
// no database is configured.
type API struct {
	Core         *services.CoreService
	Issuer       qrpay.Issuer
	Reservations ReservationSource
	Journal      JournalReader
	DriverName   string
	Now          func() time.Time
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return utils.NowUTC()
}

// RespondError sends standard error payload with request_id included.
func RespondError(c *gin.Context, status int, message string, err error) {
	payload := gin.H{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	c.JSON(status, payload)
}

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		RespondError(c, http.StatusBadRequest, "empty body", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid payload", err)
		return false
	}
	return true
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid payload", err)
		return false
	}
	return true
}

// respondSnapshot answers a core command: the snapshot on success, a discarded
// marker for stale scan results, the mapped domain error otherwise.
func (a *API) respondSnapshot(c *gin.Context, snap models.Snapshot, err error) {
	if err == nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	if domain.IsStaleSession(err) {
		utils.LogEvent(middleware.GetRequestID(c), "scan", "discard", err.Error())
		c.JSON(http.StatusOK, gin.H{"discarded": true, "snapshot": a.Core.Snapshot()})
		return
	}
	RespondDomainError(c, err)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id < 0 {
		RespondDomainError(c, domain.ValidationError{Field: name, Msg: "must be a non-negative integer", Err: err})
		return 0, false
	}
	return id, true
}

// subjectFromPath reads /:kind/:id.
func subjectFromPath(c *gin.Context) (models.SubjectRef, bool) {
	kind, err := domain.ParseSubjectKind(c.Param("kind"))
	if err != nil {
		RespondDomainError(c, err)
		return models.SubjectRef{}, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return models.SubjectRef{}, false
	}
	return models.SubjectRef{Kind: kind, ID: id}, true
}
