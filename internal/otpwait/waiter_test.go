package otpwait

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/authapi"
	"github.com/LongHE173420/AutoEric/internal/errs"
)

type scriptedInspector struct {
	calls     int
	responses []func() (*authapi.Envelope, error)
}

func (s *scriptedInspector) InspectOTP(context.Context, string, string) (*authapi.Envelope, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i]()
}

func otpEnvelope(otp string, at time.Time) *authapi.Envelope {
	data, _ := json.Marshal(map[string]any{
		"otp":       otp,
		"timestamp": at.UnixMilli(),
	})
	return &authapi.Envelope{IsSucceed: true, Data: data}
}

func TestWait_ReturnsFreshOTP(t *testing.T) {
	t.Parallel()
	since := time.Now()
	api := &scriptedInspector{responses: []func() (*authapi.Envelope, error){
		func() (*authapi.Envelope, error) { return nil, errors.New("connection refused") },
		func() (*authapi.Envelope, error) { return otpEnvelope("111111", since.Add(-time.Minute)), nil }, // stale
		func() (*authapi.Envelope, error) { return otpEnvelope("482913", since.Add(time.Second)), nil },
	}}

	w := NewWaiter(api, zap.NewNop(), true, false)
	otp, err := w.Wait(context.Background(), "0901", Options{
		Since:        since,
		Timeout:      200 * time.Millisecond,
		PollInterval: time.Millisecond,
		Context:      "LOGIN",
	})
	require.NoError(t, err)
	require.Equal(t, "482913", otp)
	require.GreaterOrEqual(t, api.calls, 3)
}

func TestWait_UnknownTimestampCountsAsFresh(t *testing.T) {
	t.Parallel()
	api := &scriptedInspector{responses: []func() (*authapi.Envelope, error){
		func() (*authapi.Envelope, error) {
			return &authapi.Envelope{IsSucceed: true, Data: json.RawMessage(`{"otp":"334455"}`)}, nil
		},
	}}

	w := NewWaiter(api, zap.NewNop(), false, false)
	otp, err := w.Wait(context.Background(), "0901", Options{
		Since:        time.Now(),
		Timeout:      100 * time.Millisecond,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, "334455", otp)
	require.Equal(t, 1, api.calls)
}

func TestWait_Timeout(t *testing.T) {
	t.Parallel()
	api := &scriptedInspector{responses: []func() (*authapi.Envelope, error){
		func() (*authapi.Envelope, error) { return &authapi.Envelope{IsSucceed: false}, nil },
	}}

	w := NewWaiter(api, zap.NewNop(), false, false)
	_, err := w.Wait(context.Background(), "0901", Options{
		Since:        time.Now(),
		Timeout:      30 * time.Millisecond,
		PollInterval: time.Millisecond,
	})
	require.ErrorIs(t, err, errs.ErrOTPTimeout)
}

func TestWait_ContextCancel(t *testing.T) {
	t.Parallel()
	api := &scriptedInspector{responses: []func() (*authapi.Envelope, error){
		func() (*authapi.Envelope, error) { return &authapi.Envelope{IsSucceed: false}, nil },
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWaiter(api, zap.NewNop(), false, false)
	_, err := w.Wait(ctx, "0901", Options{
		Since:        time.Now(),
		Timeout:      time.Minute,
		PollInterval: 10 * time.Millisecond,
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPrompt(t *testing.T) {
	t.Parallel()
	w := NewWaiter(nil, zap.NewNop(), false, false)
	var out strings.Builder
	w.in = strings.NewReader("  482913\n")
	w.out = &out

	otp, err := w.Prompt(fmt.Sprintf("OTP for %s: ", "0901"))
	require.NoError(t, err)
	require.Equal(t, "482913", otp)
	require.Equal(t, "OTP for 0901: ", out.String())
}
