// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/LongHE173420/AutoEric/internal/model"
)

// AccountRepository supplies the credentialed accounts to log in and records
// attempt outcomes.
type AccountRepository interface {
	// ListEnabled loads up to limit enabled accounts ordered by id.
	ListEnabled(ctx context.Context, limit int) ([]model.Account, error)
	// MarkAttempt records the outcome of one login attempt (best-effort).
	MarkAttempt(ctx context.Context, accountID int64, status, message string) error
	// SetDeviceID backfills the device id onto an account that has none.
	SetDeviceID(ctx context.Context, accountID int64, deviceID string) error
}
