package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestAccountRepo_ListEnabled(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, phone, password, COALESCE\(device_id, ''\), enabled FROM accounts WHERE enabled ORDER BY id LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone", "password", "device_id", "enabled"}).
			AddRow(int64(1), "0901234567", "p1", "", true).
			AddRow(int64(2), "0907654321", "p2", "dev-a", true))

	accounts, err := r.ListEnabled(ctx, 50)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, int64(1), accounts[0].ID)
	require.Equal(t, "0901234567", accounts[0].Phone)
	require.Empty(t, accounts[0].DeviceID)
	require.Equal(t, "dev-a", accounts[1].DeviceID)

	mock.ExpectQuery(`SELECT id, phone, password, COALESCE\(device_id, ''\), enabled FROM accounts WHERE enabled ORDER BY id LIMIT \$1`).
		WithArgs(50).
		WillReturnError(errors.New("boom"))
	_, err = r.ListEnabled(ctx, 50)
	require.Error(t, err)
}

func TestAccountRepo_MarkAttempt(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO login_attempts \(account_id, status, message\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(int64(7), "FAIL", "OTP_TIMEOUT").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.MarkAttempt(ctx, 7, "FAIL", "OTP_TIMEOUT"))
}

func TestAccountRepo_SetDeviceID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE accounts SET device_id = \$2 WHERE id = \$1 AND \(device_id IS NULL OR device_id = ''\)`).
		WithArgs(int64(7), "dev-a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetDeviceID(ctx, 7, "dev-a"))

	// no-op when the account already carries a device id
	mock.ExpectExec(`UPDATE accounts SET device_id = \$2 WHERE id = \$1 AND \(device_id IS NULL OR device_id = ''\)`).
		WithArgs(int64(8), "dev-a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.NoError(t, r.SetDeviceID(ctx, 8, "dev-a"))
}
