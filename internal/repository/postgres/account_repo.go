package postgres

import (
	"context"
	"fmt"

	"github.com/LongHE173420/AutoEric/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// ListEnabled selects enabled accounts in id order.
func (r *AccountRepo) ListEnabled(ctx context.Context, limit int) ([]model.Account, error) {
	const q = `
SELECT id, phone, password, COALESCE(device_id, ''), enabled
FROM accounts WHERE enabled ORDER BY id LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Phone, &a.Password, &a.DeviceID, &a.Enabled); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// MarkAttempt appends one attempt record.
func (r *AccountRepo) MarkAttempt(ctx context.Context, accountID int64, status, message string) error {
	const q = `
INSERT INTO login_attempts (account_id, status, message)
VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, accountID, status, message)
	return err
}

// SetDeviceID fills device_id only when the account has none yet.
func (r *AccountRepo) SetDeviceID(ctx context.Context, accountID int64, deviceID string) error {
	const q = `
UPDATE accounts
SET device_id = $2
WHERE id = $1 AND (device_id IS NULL OR device_id = '')`
	_, err := r.db.Pool.Exec(ctx, q, accountID, deviceID)
	return err
}
