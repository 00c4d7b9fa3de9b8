// Package otpwait obtains OTP values, either by polling the auth service's
// debug inspection endpoint or by prompting an operator.
package otpwait

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/authapi"
	"github.com/LongHE173420/AutoEric/internal/errs"
	"github.com/LongHE173420/AutoEric/internal/logging"
)

// Inspector is the slice of the auth client the waiter needs.
type Inspector interface {
	InspectOTP(ctx context.Context, phone, otpContext string) (*authapi.Envelope, error)
}

// Options bounds one wait.
type Options struct {
	Since        time.Time // only OTPs issued at or after this instant count
	Timeout      time.Duration
	PollInterval time.Duration
	Context      string // OTP context, e.g. "LOGIN"
}

// Waiter polls the inspection endpoint until a fresh OTP appears.
type Waiter struct {
	api          Inspector
	log          *zap.Logger
	verbose      bool
	otpPlaintext bool
	now          func() time.Time

	// operator prompt I/O, replaceable in tests
	in  io.Reader
	out io.Writer
}

// NewWaiter constructs a Waiter. verbose enables per-poll logging.
func NewWaiter(api Inspector, log *zap.Logger, verbose, otpPlaintext bool) *Waiter {
	return &Waiter{
		api:          api,
		log:          log,
		verbose:      verbose,
		otpPlaintext: otpPlaintext,
		now:          time.Now,
		in:           os.Stdin,
		out:          os.Stdout,
	}
}

// Wait polls until a usable OTP with a timestamp at or after opts.Since (or
// no timestamp at all) is observed, or the timeout elapses. Transport errors
// count as "not yet available"; only the deadline and context cancellation
// end the loop early.
func (w *Waiter) Wait(ctx context.Context, phone string, opts Options) (string, error) {
	deadline := w.now().Add(opts.Timeout)
	var lastSeen string

	for w.now().Before(deadline) {
		if otp, ok := w.check(ctx, phone, opts, lastSeen); ok {
			return otp, nil
		} else if otp != "" {
			lastSeen = otp
		}
		if err := sleep(ctx, opts.PollInterval); err != nil {
			return "", err
		}
	}

	w.log.Debug("otp wait timed out",
		zap.String("phone", phone),
		zap.String("context", opts.Context),
		zap.Duration("timeout", opts.Timeout),
	)
	return "", errs.ErrOTPTimeout
}

// check performs one poll. Returns (otp, true) when a fresh OTP was found,
// (stale-or-empty otp, false) otherwise.
func (w *Waiter) check(ctx context.Context, phone string, opts Options, lastSeen string) (string, bool) {
	env, err := w.api.InspectOTP(ctx, phone, opts.Context)
	if err != nil {
		w.log.Debug("otp poll error", zap.String("phone", phone), zap.Error(err))
		return "", false
	}

	rep, ok := authapi.ParseOTP(env.Data)
	if !ok {
		if w.verbose {
			w.log.Debug("otp poll: nothing yet", zap.String("phone", phone), zap.String("context", opts.Context))
		}
		return "", false
	}

	fresh := !rep.AtKnown || !rep.At.Before(opts.Since)
	if fresh {
		if rep.OTP != lastSeen {
			w.log.Debug("otp found",
				zap.String("phone", phone),
				zap.String("context", opts.Context),
				zap.String("otp", logging.MaskSecret(rep.OTP, w.otpPlaintext)),
				zap.String("keyUsed", rep.KeyUsed),
			)
		}
		return rep.OTP, true
	}

	if w.verbose {
		w.log.Debug("otp poll: stale",
			zap.String("phone", phone),
			zap.Time("otpAt", rep.At),
			zap.Time("since", opts.Since),
		)
	}
	return rep.OTP, false
}

// Prompt solicits one OTP from the operator.
func (w *Waiter) Prompt(promptText string) (string, error) {
	if _, err := fmt.Fprint(w.out, promptText); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(w.in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	otp := strings.TrimSpace(line)
	w.log.Info("otp entered by operator", zap.String("otp", logging.MaskSecret(otp, w.otpPlaintext)))
	return otp, nil
}

// sleep pauses without blocking the scheduler past context cancellation.
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
