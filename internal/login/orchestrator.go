// Package login drives a single account from "no valid session" to "tokens
// obtained", covering the password step and the bounded OTP challenge rounds.
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/authapi"
	"github.com/LongHE173420/AutoEric/internal/errs"
	"github.com/LongHE173420/AutoEric/internal/logging"
	"github.com/LongHE173420/AutoEric/internal/model"
	"github.com/LongHE173420/AutoEric/internal/otpwait"
	"github.com/LongHE173420/AutoEric/internal/session"
	"github.com/LongHE173420/AutoEric/internal/store"
)

const otpContext = "LOGIN"

// API is the slice of the auth client the orchestrator needs.
type API interface {
	Login(ctx context.Context, phone, password, deviceID string) (*authapi.Envelope, error)
	VerifyLoginOTP(ctx context.Context, phone, otp, deviceID string) (*authapi.Envelope, error)
	ResendLoginOTP(ctx context.Context, phone, deviceID string) (*authapi.Envelope, error)
	InspectOTP(ctx context.Context, phone, otpContext string) (*authapi.Envelope, error)
}

// OTPSource obtains OTP values, by polling or from an operator.
type OTPSource interface {
	Wait(ctx context.Context, phone string, opts otpwait.Options) (string, error)
	Prompt(promptText string) (string, error)
}

// Preflight is the session-manager slice used to skip logins that already
// have a valid session.
type Preflight interface {
	EnsureValidAccessToken(ctx context.Context, phone, deviceID string) session.Result
}

// Config holds the timing policy of the challenge rounds.
type Config struct {
	OTPTimeout    time.Duration // per-attempt poll budget
	OTPPoll       time.Duration
	VerifyRetry   int           // verify attempts per distinct OTP value
	VerifyBackoff time.Duration // pause between verify attempts
	VerifyWindow  time.Duration // budget per OTP round, from session start
	ResendWindow  time.Duration // extra budget accounted per round for the overall cap
	MaxResend     int
	AutoFetchOTP  bool
	AutoResend    bool
	PromptOTP     bool
	OTPPlaintext  bool // log OTP values unmasked
}

// Orchestrator is the login/OTP state machine.
type Orchestrator struct {
	api      API
	otp      OTPSource
	sessions Preflight
	tokens   *store.TokenStore
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator. sessions may be nil, in which
// case every EnsureLogin performs a full login.
func NewOrchestrator(api API, otp OTPSource, sessions Preflight, tokens *store.TokenStore, cfg Config, log *zap.Logger) *Orchestrator {
	if cfg.VerifyRetry < 1 {
		cfg.VerifyRetry = 1
	}
	if cfg.VerifyBackoff <= 0 {
		cfg.VerifyBackoff = 300 * time.Millisecond
	}
	if cfg.OTPPoll <= 0 {
		cfg.OTPPoll = 300 * time.Millisecond
	}
	return &Orchestrator{
		api:      api,
		otp:      otp,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// EnsureLogin returns a valid session for the account, reusing or silently
// refreshing a cached one when possible and performing a full password+OTP
// login otherwise.
func (o *Orchestrator) EnsureLogin(ctx context.Context, acc model.Account, deviceID string) model.LoginOutcome {
	phone := model.NormalizePhone(acc.Phone)
	if phone == "" || acc.Password == "" {
		return model.LoginOutcome{Reason: errs.ReasonInvalidCredentials}
	}

	if o.sessions != nil {
		if r := o.sessions.EnsureValidAccessToken(ctx, phone, deviceID); r.OK {
			out := model.LoginOutcome{OK: true, Reason: r.Reason}
			if st, err := o.tokens.Get(phone); err == nil && st != nil {
				out.Tokens = &model.Tokens{AccessToken: st.AccessToken, RefreshToken: st.RefreshToken}
			}
			return out
		}
	}

	return o.loginFlow(ctx, phone, acc.Password, deviceID)
}

// loginFlow is the LOGIN_ATTEMPT state: password login, then either terminal
// success/failure or the OTP rounds.
func (o *Orchestrator) loginFlow(ctx context.Context, phone, password, deviceID string) model.LoginOutcome {
	log := o.log.With(zap.String("phone", phone))

	// A fresh login always invalidates prior session state.
	if err := o.tokens.ClearAccount(phone); err != nil {
		log.Warn("clear cached tokens", zap.Error(err))
	}

	env, err := o.api.Login(ctx, phone, password, deviceID)
	if err != nil {
		log.Error("login request", zap.Error(err))
		return model.LoginOutcome{Reason: errs.ReasonNetworkError}
	}

	if env.IsSucceed {
		flags := env.Flags()
		if flags.OTPNotRequired() {
			if t, ok := env.Tokens(); ok {
				o.persist(phone, t, deviceID, log)
				log.Debug("login ok without otp")
				return model.LoginOutcome{OK: true, Tokens: t}
			}
		}
		return o.otpRounds(ctx, phone, deviceID, flags.OTPSample, log)
	}

	msg := env.MessageOr(errs.ReasonLoginFail)
	if msg != errs.ReasonNeedOTP {
		log.Warn("login rejected", zap.String("reason", msg))
		return model.LoginOutcome{Reason: msg}
	}
	return o.otpRounds(ctx, phone, deviceID, env.Flags().OTPSample, log)
}

// otpRounds runs OTP_ROUND / RESEND_DECISION until tokens are obtained or
// the round budget is exhausted. Policy on exhausted resends: terminate as
// failed, never restart the password login.
func (o *Orchestrator) otpRounds(ctx context.Context, phone, deviceID, sample string, log *zap.Logger) model.LoginOutcome {
	sessionStart := o.now()
	// Hard cap across all rounds, so re-challenges can never loop unbounded.
	overall := sessionStart.Add(time.Duration(o.cfg.MaxResend+1) * (o.cfg.VerifyWindow + o.cfg.ResendWindow))

	resendCount := 0
	directOTP := sample
	lastTried := ""

	for {
		verifyDeadline := sessionStart.Add(o.cfg.VerifyWindow)

		// An already-issued OTP from the inspection channel takes precedence
		// once per round, then polling resumes.
		if directOTP == "" && o.cfg.AutoFetchOTP {
			if otp, ok := o.inspectOnce(ctx, phone, sessionStart); ok && otp != lastTried {
				directOTP = otp
			}
		}

		for o.now().Before(verifyDeadline) && o.now().Before(overall) {
			otp := directOTP
			directOTP = ""

			if otp == "" {
				var err error
				otp, err = o.obtainOTP(ctx, phone, sessionStart, verifyDeadline)
				if err != nil {
					if errors.Is(err, errs.ErrOTPTimeout) {
						// Fail fast: no resend when no OTP arrived at all.
						log.Debug("no otp before the attempt deadline")
						return model.LoginOutcome{Reason: errs.ReasonOTPTimeout}
					}
					log.Error("obtain otp", zap.Error(err))
					return model.LoginOutcome{Reason: errs.ReasonNetworkError}
				}
			}

			if otp == "" || otp == lastTried {
				// Same value that already failed; don't spin on it.
				if err := sleep(ctx, o.cfg.OTPPoll); err != nil {
					return model.LoginOutcome{Reason: errs.ReasonNetworkError}
				}
				continue
			}
			lastTried = otp

			if tokens, ok := o.verifyOTP(ctx, phone, otp, deviceID, log); ok {
				o.persist(phone, tokens, deviceID, log)
				log.Debug("login ok with otp")
				return model.LoginOutcome{OK: true, Tokens: tokens, UsedOTP: otp}
			}
		}

		// RESEND_DECISION
		if resendCount >= o.cfg.MaxResend || !o.cfg.AutoResend || !o.now().Before(overall) {
			log.Debug("otp rounds exhausted",
				zap.Int("resendCount", resendCount),
				zap.Bool("autoResend", o.cfg.AutoResend),
			)
			return model.LoginOutcome{Reason: errs.ReasonVerifyExhausted}
		}

		log.Debug("requesting otp resend", zap.Int("resend", resendCount+1))
		env, err := o.api.ResendLoginOTP(ctx, phone, deviceID)
		if err != nil {
			log.Error("resend request", zap.Error(err))
			return model.LoginOutcome{Reason: errs.ReasonNetworkError}
		}
		if !env.IsSucceed {
			log.Warn("otp resend rejected", zap.String("message", env.MessageOr(errs.ReasonResendFail)))
			return model.LoginOutcome{Reason: errs.ReasonResendFail}
		}
		if s := env.Flags().OTPSample; s != "" {
			directOTP = s
		}
		resendCount++
		sessionStart = o.now()
	}
}

// inspectOnce performs a single inspection-channel read, applying the same
// freshness rule as the waiter: timestamp at or after since, or unknown.
func (o *Orchestrator) inspectOnce(ctx context.Context, phone string, since time.Time) (string, bool) {
	env, err := o.api.InspectOTP(ctx, phone, otpContext)
	if err != nil {
		return "", false
	}
	rep, ok := authapi.ParseOTP(env.Data)
	if !ok {
		return "", false
	}
	if rep.AtKnown && rep.At.Before(since) {
		return "", false
	}
	return rep.OTP, true
}

// obtainOTP actively acquires an OTP value per configuration: polling the
// inspection channel, or prompting the operator. Neither configured means no
// value, and the round plays out to its window.
func (o *Orchestrator) obtainOTP(ctx context.Context, phone string, since, verifyDeadline time.Time) (string, error) {
	if o.cfg.AutoFetchOTP {
		timeout := min(o.cfg.OTPTimeout, max(500*time.Millisecond, verifyDeadline.Sub(o.now())))
		return o.otp.Wait(ctx, phone, otpwait.Options{
			Since:        since,
			Timeout:      timeout,
			PollInterval: o.cfg.OTPPoll,
			Context:      otpContext,
		})
	}
	if o.cfg.PromptOTP {
		return o.otp.Prompt(fmt.Sprintf("Enter OTP for %s: ", phone))
	}
	return "", nil
}

// verifyOTP submits one OTP value up to VerifyRetry times with a constant
// pause between attempts. Transport errors count as failed attempts.
func (o *Orchestrator) verifyOTP(ctx context.Context, phone, otp, deviceID string, log *zap.Logger) (*model.Tokens, bool) {
	var tokens *model.Tokens
	backoff := retry.WithMaxRetries(uint64(o.cfg.VerifyRetry-1), retry.NewConstant(o.cfg.VerifyBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		env, err := o.api.VerifyLoginOTP(ctx, phone, otp, deviceID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if env.IsSucceed {
			if t, ok := env.Tokens(); ok {
				tokens = t
				return nil
			}
		}
		return retry.RetryableError(errors.New(env.MessageOr(errs.ReasonVerifyFail)))
	})
	if err != nil {
		log.Debug("otp verify exhausted",
			zap.String("otp", logging.MaskSecret(otp, o.cfg.OTPPlaintext)),
			zap.Error(err),
		)
		return nil, false
	}
	return tokens, true
}

func (o *Orchestrator) persist(phone string, t *model.Tokens, deviceID string, log *zap.Logger) {
	if err := o.tokens.Set(phone, t.AccessToken, t.RefreshToken, deviceID); err != nil {
		log.Error("persist tokens", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
