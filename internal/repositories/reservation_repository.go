package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	intconfig "driverdesk/internal/config"
	intdb "driverdesk/internal/db"
	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
)

const reservationsTable = "route_reservations"

// ReservationRepository reads the booking feed the dispatch site writes into
// route_reservations. It is read-only; the console never writes reservations back.
type ReservationRepository struct {
	DB *sql.DB
}

func (r ReservationRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// ListForRoute returns the day's non-cancelled reservations for a route. Older
// schemas without an amount column yield zero amounts, priced later from the route.
func (r ReservationRepository) ListForRoute(ctx context.Context, routeID string, day time.Time) ([]models.Booking, error) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		return nil, domain.ValidationError{Field: "route_id", Msg: "is required"}
	}
	db := r.db()
	if db == nil {
		return nil, domain.InternalError{Msg: "database not configured"}
	}
	if !intdb.HasTable(ctx, db, reservationsTable) {
		return nil, domain.NotFoundError{Resource: "table " + reservationsTable}
	}

	amountSel := "0"
	if intdb.HasColumn(ctx, db, reservationsTable, "amount") {
		amountSel = "COALESCE(amount, 0)"
	}
	statusFilter := ""
	if intdb.HasColumn(ctx, db, reservationsTable, "status") {
		statusFilter = "AND COALESCE(status, '') <> 'cancelled'"
	}

	query := fmt.Sprintf(`
		SELECT id, COALESCE(passenger_name, ''), from_stop, to_stop, COALESCE(party_size, 1), %s
		FROM %s
		WHERE route_id = ?
		  AND trip_date = ?
		  %s
		ORDER BY id ASC
	`, amountSel, reservationsTable, statusFilter)

	rows, err := db.QueryContext(ctx, query, routeID, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.PassengerName, &b.FromStop, &b.ToStop, &b.PartySize, &b.Amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
