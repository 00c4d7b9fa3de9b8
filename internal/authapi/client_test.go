package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "/auth/debug/redis-otp", 2*time.Second)
}

func decodeBody(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestClient_Login(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, "dev-1", r.Header.Get("X-Device-Id"))
		body := decodeBody(t, r)
		require.Equal(t, "0901", body["phone"])
		require.Equal(t, "pw", body["password"])
		_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"otpRequired":false,"accessToken":"A1","refreshToken":"R1"}}`))
	})

	env, err := c.Login(context.Background(), "0901", "pw", "dev-1")
	require.NoError(t, err)
	require.True(t, env.IsSucceed)

	tokens, ok := env.Tokens()
	require.True(t, ok)
	require.Equal(t, "A1", tokens.AccessToken)
	require.Equal(t, "R1", tokens.RefreshToken)
	require.True(t, env.Flags().OTPNotRequired())
}

func TestClient_VerifyAndResend(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/verify-login-otp":
			body := decodeBody(t, r)
			require.Equal(t, "482913", body["otp"])
			_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"tokens":{"accessToken":"A2","refreshToken":"R2"}}}`))
		case "/auth/resend-otp-login":
			_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"otpSample":"111222"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	env, err := c.VerifyLoginOTP(context.Background(), "0901", "482913", "dev-1")
	require.NoError(t, err)
	tokens, ok := env.Tokens()
	require.True(t, ok)
	require.Equal(t, "A2", tokens.AccessToken)

	env, err = c.ResendLoginOTP(context.Background(), "0901", "dev-1")
	require.NoError(t, err)
	require.Equal(t, "111222", env.Flags().OTPSample)
}

func TestClient_RefreshAndMe(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh-token":
			body := decodeBody(t, r)
			require.Equal(t, "R1", body["refreshToken"])
			_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"tokens":{"accessToken":"A2","refreshToken":"R2"}}}`))
		case "/me":
			require.Equal(t, "Bearer A2", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"name":"alice"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	env, err := c.RefreshToken(context.Background(), "R1", "dev-1")
	require.NoError(t, err)
	_, ok := env.Tokens()
	require.True(t, ok)

	env, err = c.Me(context.Background(), "A2")
	require.NoError(t, err)
	require.True(t, env.IsSucceed)
}

func TestClient_InspectOTP(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/debug/redis-otp", r.URL.Path)
		require.Equal(t, "0901", r.URL.Query().Get("phone"))
		require.Equal(t, "LOGIN", r.URL.Query().Get("context"))
		_, _ = w.Write([]byte(`{"isSucceed":true,"message":"","data":{"otp":"482913"}}`))
	})

	env, err := c.InspectOTP(context.Background(), "0901", "LOGIN")
	require.NoError(t, err)
	rep, ok := ParseOTP(env.Data)
	require.True(t, ok)
	require.Equal(t, "482913", rep.OTP)
}

func TestClient_EnvelopeOnErrorStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"isSucceed":false,"message":"WRONG_PASSWORD"}`))
	})

	env, err := c.Login(context.Background(), "0901", "bad", "dev-1")
	require.NoError(t, err)
	require.False(t, env.IsSucceed)
	require.Equal(t, "WRONG_PASSWORD", env.Message)
}

func TestEnvelope_TokenExtractionPriority(t *testing.T) {
	t.Parallel()
	// nested shape wins over flattened fields
	env := &Envelope{Data: json.RawMessage(`{"tokens":{"accessToken":"NA","refreshToken":"NR"},"accessToken":"FA","refreshToken":"FR"}`)}
	tokens, ok := env.Tokens()
	require.True(t, ok)
	require.Equal(t, "NA", tokens.AccessToken)

	// half a pair is no pair
	env = &Envelope{Data: json.RawMessage(`{"accessToken":"FA"}`)}
	_, ok = env.Tokens()
	require.False(t, ok)

	env = &Envelope{}
	_, ok = env.Tokens()
	require.False(t, ok)
}
