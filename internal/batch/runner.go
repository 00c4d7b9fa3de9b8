// Package batch applies the login orchestration across a fleet of accounts
// with bounded concurrency.
package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LongHE173420/AutoEric/internal/errs"
	"github.com/LongHE173420/AutoEric/internal/logging"
	"github.com/LongHE173420/AutoEric/internal/model"
	"github.com/LongHE173420/AutoEric/internal/repository"
	"github.com/LongHE173420/AutoEric/internal/session"
	"github.com/LongHE173420/AutoEric/internal/store"
)

// Sessions is the session-manager slice the runner needs.
type Sessions interface {
	MeWithAutoAuth(ctx context.Context, phone, deviceID string) session.MeResult
}

// Login runs the orchestration for one account.
type Login interface {
	EnsureLogin(ctx context.Context, acc model.Account, deviceID string) model.LoginOutcome
}

// Runner processes accounts in fixed-size groups: groups run sequentially,
// accounts within a group in parallel.
type Runner struct {
	accounts          repository.AccountRepository
	sessions          Sessions
	login             Login
	tokens            *store.TokenStore
	accountsLimit     int
	groupSize         int
	passwordPlaintext bool
	log               *zap.Logger
}

// NewRunner constructs a Runner. groupSize below one falls back to 5.
func NewRunner(accounts repository.AccountRepository, sessions Sessions, login Login, tokens *store.TokenStore, accountsLimit, groupSize int, passwordPlaintext bool, log *zap.Logger) *Runner {
	if groupSize < 1 {
		groupSize = 5
	}
	if accountsLimit < 1 {
		accountsLimit = 1000
	}
	return &Runner{
		accounts:          accounts,
		sessions:          sessions,
		login:             login,
		tokens:            tokens,
		accountsLimit:     accountsLimit,
		groupSize:         groupSize,
		passwordPlaintext: passwordPlaintext,
		log:               log,
	}
}

// Run loads the account list and processes it. Only a failure to load the
// list is an error; individual account failures are counted, never raised.
func (r *Runner) Run(ctx context.Context, deviceID string) (model.Summary, error) {
	var summary model.Summary

	accounts, err := r.accounts.ListEnabled(ctx, r.accountsLimit)
	if err != nil {
		return summary, fmt.Errorf("load accounts: %w", err)
	}
	summary.Accounts = len(accounts)
	r.log.Debug("accounts loaded", zap.Int("accounts", len(accounts)), zap.String("deviceId", deviceID))

	var mu sync.Mutex
	for start := 0; start < len(accounts); start += r.groupSize {
		end := min(start+r.groupSize, len(accounts))

		var g errgroup.Group
		for i := start; i < end; i++ {
			acc := accounts[i]
			row := i + 1
			g.Go(func() error {
				res := r.processAccount(ctx, acc, row, deviceID)
				mu.Lock()
				switch res {
				case resultAlreadyOK:
					summary.AlreadyOK++
				case resultSuccess:
					summary.Success++
				case resultRelogin:
					summary.Success++
					summary.Relogin++
				default:
					summary.Fail++
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	r.log.Debug("job summary",
		zap.Int("success", summary.Success),
		zap.Int("alreadyOk", summary.AlreadyOK),
		zap.Int("relogin", summary.Relogin),
		zap.Int("fail", summary.Fail),
		zap.Int("accounts", summary.Accounts),
	)
	return summary, nil
}

type accountResult int

const (
	resultFail accountResult = iota
	resultAlreadyOK
	resultSuccess
	resultRelogin
)

// processAccount handles one account end to end. Panics are contained and
// counted as failures so one bad account never aborts the batch.
func (r *Runner) processAccount(ctx context.Context, acc model.Account, row int, deviceID string) (res accountResult) {
	log := r.log.With(zap.Int("row", row), zap.Int64("accId", acc.ID), zap.String("phone", acc.Phone))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("account processing panicked", zap.Any("panic", rec))
			res = resultFail
		}
	}()

	phone := model.NormalizePhone(acc.Phone)
	log.Debug("account start", zap.String("password", logging.MaskSecret(acc.Password, r.passwordPlaintext)))

	if phone == "" || acc.Password == "" {
		r.markAttempt(ctx, acc.ID, "INVALID", "missing phone/password", log)
		log.Warn("account skipped: incomplete credentials")
		return resultFail
	}

	stored, err := r.tokens.Get(phone)
	if err != nil {
		log.Warn("read cached tokens", zap.Error(err))
	}
	hadTokens := stored != nil

	if hadTokens {
		log.Debug("cached tokens found",
			zap.String("accessToken", logging.MaskToken(stored.AccessToken)),
			zap.String("refreshToken", logging.MaskToken(stored.RefreshToken)),
		)
		if me := r.sessions.MeWithAutoAuth(ctx, phone, deviceID); me.OK {
			r.markAttempt(ctx, acc.ID, "OK", "session still valid", log)
			log.Debug("session still valid, skipping login")
			return resultAlreadyOK
		} else {
			log.Debug("cached session unusable, will login", zap.String("reason", me.Message))
		}
	}

	out := r.login.EnsureLogin(ctx, acc, deviceID)
	if !out.OK {
		reason := out.Reason
		if reason == "" {
			reason = errs.ReasonLoginFail
		}
		r.markAttempt(ctx, acc.ID, "FAIL", reason, log)
		log.Debug("login flow failed", zap.String("reason", reason))
		return resultFail
	}

	r.markAttempt(ctx, acc.ID, "OK", "login ok", log)

	// First login from this installation: remember which device the account used.
	if acc.DeviceID == "" {
		if err := r.accounts.SetDeviceID(ctx, acc.ID, deviceID); err != nil {
			log.Warn("backfill device id", zap.Error(err))
		}
	}

	// Post-login sanity check, log only.
	if me := r.sessions.MeWithAutoAuth(ctx, phone, deviceID); me.OK {
		log.Debug("profile ok after login")
	} else {
		log.Debug("profile check failed after login", zap.String("reason", me.Message))
	}

	if hadTokens {
		return resultRelogin
	}
	return resultSuccess
}

func (r *Runner) markAttempt(ctx context.Context, accountID int64, status, message string, log *zap.Logger) {
	if err := r.accounts.MarkAttempt(ctx, accountID, status, message); err != nil {
		log.Debug("mark attempt", zap.Error(err))
	}
}
