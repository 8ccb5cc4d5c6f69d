package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intconfig "driverdesk/internal/config"
	intdb "driverdesk/internal/db"
	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
)

const transactionsTable = "driver_transactions"

// TransactionRepository mirrors ledger lines into MySQL. Rows are only ever inserted.
type TransactionRepository struct {
	DB *sql.DB
}

func (r TransactionRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// EnsureTable creates driver_transactions when missing.
func (r TransactionRepository) EnsureTable(ctx context.Context) error {
	db := r.db()
	if db == nil {
		return domain.InternalError{Msg: "database not configured"}
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+transactionsTable+` (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			amount BIGINT NOT NULL,
			counterparty VARCHAR(255) NOT NULL,
			intermediary VARCHAR(255) NULL,
			payment_method VARCHAR(16) NOT NULL,
			trip_id VARCHAR(36) NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_driver_transactions_trip (trip_id),
			KEY idx_driver_transactions_created (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	if err != nil {
		return fmt.Errorf("ensure %s: %w", transactionsTable, err)
	}
	return nil
}

// Append implements the ledger journal.
func (r TransactionRepository) Append(ctx context.Context, tx models.Transaction) error {
	db := r.db()
	if db == nil {
		return domain.InternalError{Msg: "database not configured"}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO `+transactionsTable+`
			(id, kind, amount, counterparty, intermediary, payment_method, trip_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		string(tx.Kind),
		tx.Amount,
		tx.Counterparty,
		intdb.NullIfEmpty(tx.Intermediary),
		string(tx.PaymentMethod),
		intdb.NullIfEmpty(tx.TripID),
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", transactionsTable, err)
	}
	return nil
}

// List reads journal rows, newest last. Empty tripID means all trips.
func (r TransactionRepository) List(ctx context.Context, tripID string, limit int) ([]models.Transaction, error) {
	db := r.db()
	if db == nil {
		return nil, domain.InternalError{Msg: "database not configured"}
	}
	if !intdb.HasTable(ctx, db, transactionsTable) {
		return []models.Transaction{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	where := ""
	args := []any{}
	if tripID = strings.TrimSpace(tripID); tripID != "" {
		where = "WHERE trip_id = ?"
		args = append(args, tripID)
	}
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, amount, counterparty, COALESCE(intermediary, ''), payment_method,
		       COALESCE(trip_id, ''), created_at
		FROM (
			SELECT * FROM `+transactionsTable+` `+where+`
			ORDER BY created_at DESC
			LIMIT ?
		) recent
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		var (
			tx     models.Transaction
			kind   string
			method string
		)
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &tx.Counterparty, &tx.Intermediary, &method, &tx.TripID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Kind = domain.TransactionKind(kind)
		tx.PaymentMethod = domain.PaymentMethod(method)
		out = append(out, tx)
	}
	return out, rows.Err()
}
