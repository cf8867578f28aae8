package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/models"
)

// SQLiteBillingRepository implements BillingRepository for SQLite/libsql.
type SQLiteBillingRepository struct {
	db *sql.DB
}

// NewSQLiteBillingRepository creates a new SQLite billing repository.
func NewSQLiteBillingRepository(db *sql.DB) *SQLiteBillingRepository {
	return &SQLiteBillingRepository{db: db}
}

func (r *SQLiteBillingRepository) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	query := `SELECT user_id, balance, lifetime_added, lifetime_spent, updated_at FROM user_balances WHERE user_id = ?`
	var balance models.UserBalance
	var updatedAt string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance.UserID, &balance.Balance, &balance.LifetimeAdded, &balance.LifetimeSpent, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	balance.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &balance, nil
}

func (r *SQLiteBillingRepository) EnsureBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	query := `INSERT INTO user_balances (user_id, balance, lifetime_added, lifetime_spent, updated_at)
		VALUES (?, 0, 0, 0, ?)
		ON CONFLICT(user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return r.GetBalance(ctx, userID)
}

// Deduct runs the read-check-write sequence in one transaction. The UPDATE
// repeats the balance guard so a concurrent deduction between the read and
// the write cannot overdraw; if the guard fails the whole attempt reports
// insufficient funds with a fresh balance.
func (r *SQLiteBillingRepository) Deduct(ctx context.Context, userID string, points int, description, metadata string, analysisID *string) (*models.DeductResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT balance FROM user_balances WHERE user_id = ?`, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	if current < points {
		return &models.DeductResult{Success: false, NewBalance: current}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`UPDATE user_balances SET balance = balance - ?, lifetime_spent = lifetime_spent + ?, updated_at = ? WHERE user_id = ? AND balance >= ?`,
		points, points, now, userID, points,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost a race with another deduction
		return &models.DeductResult{Success: false, NewBalance: current}, nil
	}

	newBalance := current - points
	_, err = tx.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, type, amount, balance_after, analysis_id, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), userID, models.TxTypeDeduction, -points, newBalance, analysisID, description, metadata, now,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.DeductResult{Success: true, NewBalance: newBalance}, nil
}

// Credit adds points in one transaction. When orderID is set, the
// processed_orders insert acts as the idempotency gate: a duplicate key
// means this order was already credited and the call returns nil without
// touching the balance.
func (r *SQLiteBillingRepository) Credit(ctx context.Context, userID string, points int, description, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var orderRef *string
	if orderID != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO processed_orders (order_id, user_id, points, processed_at) VALUES (?, ?, ?, ?)`,
			orderID, userID, points, now,
		)
		if isDuplicateKeyError(err) {
			return nil // already credited
		}
		if err != nil {
			return err
		}
		orderRef = &orderID
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE user_balances SET balance = balance + ?, lifetime_added = lifetime_added + ?, updated_at = ? WHERE user_id = ?`,
		points, points, now, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}

	var newBalance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM user_balances WHERE user_id = ?`, userID).Scan(&newBalance); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, type, amount, balance_after, order_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), userID, models.TxTypePurchase, points, newBalance, orderRef, description, now,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Adjust applies a signed correction in one transaction. A negative amount
// removes at most what the user still holds, so a refund never claws back
// points that were already spent. The processed_orders gate makes replayed
// refund webhooks a no-op, same as Credit.
func (r *SQLiteBillingRepository) Adjust(ctx context.Context, userID string, points int, description, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var orderRef *string
	if orderID != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO processed_orders (order_id, user_id, points, processed_at) VALUES (?, ?, ?, ?)`,
			orderID, userID, points, now,
		)
		if isDuplicateKeyError(err) {
			return nil // already applied
		}
		if err != nil {
			return err
		}
		orderRef = &orderID
	}

	var current int
	err = tx.QueryRowContext(ctx, `SELECT balance FROM user_balances WHERE user_id = ?`, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return errkind.New(errkind.UserNotFound, "no balance record for user %s", userID)
	}
	if err != nil {
		return err
	}

	applied := points
	if applied < 0 && current+applied < 0 {
		applied = -current
	}

	newBalance := current + applied
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_balances SET balance = ?, updated_at = ? WHERE user_id = ?`,
		newBalance, now, userID,
	); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, type, amount, balance_after, order_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), userID, models.TxTypeAdjustment, applied, newBalance, orderRef, description, now,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteBillingRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.PointTransaction, error) {
	query := `SELECT id, user_id, type, amount, balance_after, order_id, analysis_id, description, metadata, created_at
		FROM point_transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.PointTransaction
	for rows.Next() {
		var t models.PointTransaction
		var orderID, analysisID, metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter, &orderID, &analysisID, &t.Description, &metadata, &createdAt); err != nil {
			return nil, err
		}
		if orderID.Valid {
			t.OrderID = &orderID.String
		}
		if analysisID.Valid {
			t.AnalysisID = &analysisID.String
		}
		t.Metadata = metadata.String
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

// isDuplicateKeyError checks for SQLite unique constraint violations.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
