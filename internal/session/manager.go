// Package session decides whether a cached session is usable, needs a silent
// refresh, or requires a full re-login.
package session

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/authapi"
	"github.com/LongHE173420/AutoEric/internal/errs"
	"github.com/LongHE173420/AutoEric/internal/logging"
	"github.com/LongHE173420/AutoEric/internal/store"
	"github.com/LongHE173420/AutoEric/internal/token"
)

// API is the slice of the auth client the manager needs.
type API interface {
	RefreshToken(ctx context.Context, refreshToken, deviceID string) (*authapi.Envelope, error)
	Me(ctx context.Context, accessToken string) (*authapi.Envelope, error)
}

// Result reports the access-token triage for one account.
type Result struct {
	OK          bool
	AccessToken string
	Refreshed   bool
	Reason      string
}

// Manager owns the refresh-or-invalidate transition for cached tokens.
type Manager struct {
	api        API
	tokens     *store.TokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewManager constructs a Manager with the configured token TTLs.
func NewManager(api API, tokens *store.TokenStore, accessTTL, refreshTTL time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		api:        api,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
		now:        time.Now,
	}
}

// EnsureValidAccessToken returns a usable access token for the account,
// refreshing silently when the access token has expired. An expired refresh
// token wipes the whole cache; a rejected or failed refresh clears only this
// account.
func (m *Manager) EnsureValidAccessToken(ctx context.Context, phone, deviceID string) Result {
	stored, err := m.tokens.Get(phone)
	if err != nil || stored == nil {
		return Result{Reason: errs.ReasonNoTokens}
	}

	now := m.now()
	accessExpired := token.Expired(stored.AccessToken, m.accessTTL, now)
	refreshExpired := token.Expired(stored.RefreshToken, m.refreshTTL, now)

	m.log.Debug("token status",
		zap.String("phone", phone),
		zap.String("user", token.Username(stored.AccessToken)),
		zap.Bool("accessExpired", accessExpired),
		zap.Bool("refreshExpired", refreshExpired),
		zap.String("accessToken", logging.MaskToken(stored.AccessToken)),
		zap.String("refreshToken", logging.MaskToken(stored.RefreshToken)),
	)

	if !accessExpired {
		return Result{OK: true, AccessToken: stored.AccessToken, Reason: errs.ReasonAccessOK}
	}

	if refreshExpired {
		// Conservative: an expired refresh token invalidates the whole cache.
		m.log.Debug("refresh token expired, clearing all cached sessions", zap.String("phone", phone))
		_ = m.tokens.ClearAll()
		return Result{Reason: errs.ReasonRefreshExpired}
	}

	env, err := m.api.RefreshToken(ctx, stored.RefreshToken, deviceID)
	if err != nil {
		m.log.Error("refresh failed, clearing account tokens",
			zap.String("phone", phone), zap.Error(err))
		_ = m.tokens.ClearAccount(phone)
		return Result{Reason: errs.ReasonRefreshError}
	}

	if env.IsSucceed {
		if t, ok := env.Tokens(); ok {
			if err := m.tokens.Set(phone, t.AccessToken, t.RefreshToken, deviceID); err != nil {
				m.log.Error("persist refreshed tokens", zap.String("phone", phone), zap.Error(err))
			}
			m.log.Info("tokens refreshed",
				zap.String("phone", phone),
				zap.String("accessToken", logging.MaskToken(t.AccessToken)),
				zap.String("refreshToken", logging.MaskToken(t.RefreshToken)),
			)
			return Result{OK: true, AccessToken: t.AccessToken, Refreshed: true, Reason: errs.ReasonRefreshOK}
		}
	}

	msg := env.MessageOr(errs.ReasonRefreshFail)
	m.log.Debug("refresh rejected, clearing account tokens",
		zap.String("phone", phone), zap.String("message", msg))
	_ = m.tokens.ClearAccount(phone)
	return Result{Reason: msg}
}

// MeResult is the outcome of a profile fetch through MeWithAutoAuth.
type MeResult struct {
	OK      bool
	Data    json.RawMessage
	Message string
}

// MeWithAutoAuth fetches the profile, refreshing once when the server reports
// the access token expired mid-flight. An invalid-token response clears the
// account's cached session.
func (m *Manager) MeWithAutoAuth(ctx context.Context, phone, deviceID string) MeResult {
	t := m.EnsureValidAccessToken(ctx, phone, deviceID)
	if !t.OK || t.AccessToken == "" {
		return MeResult{Message: t.Reason}
	}

	env, err := m.api.Me(ctx, t.AccessToken)
	if err != nil {
		m.log.Error("profile fetch", zap.String("phone", phone), zap.Error(err))
		return MeResult{Message: errs.ReasonNetworkError}
	}
	if env.IsSucceed {
		return MeResult{OK: true, Data: env.Data}
	}

	msg := env.MessageOr("ME_FAIL")
	switch msg {
	case "ACCESS_TOKEN_EXPIRED":
		// Expiry raced our TTL check; refresh once and retry.
		t2 := m.EnsureValidAccessToken(ctx, phone, deviceID)
		if !t2.OK || t2.AccessToken == "" {
			return MeResult{Message: t2.Reason}
		}
		env2, err := m.api.Me(ctx, t2.AccessToken)
		if err != nil {
			return MeResult{Message: errs.ReasonNetworkError}
		}
		if env2.IsSucceed {
			return MeResult{OK: true, Data: env2.Data}
		}
		return MeResult{Message: env2.MessageOr("ME_FAIL")}
	case "INVALID_ACCESS_TOKEN":
		_ = m.tokens.ClearAccount(phone)
	}
	return MeResult{Message: msg}
}
