// Package authapi is the stateless request wrapper around the remote
// authentication service. It carries no retry or orchestration logic.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LongHE173420/AutoEric/internal/model"
)

const deviceHeader = "X-Device-Id"

// Envelope is the response shape shared by every endpoint, the profile
// endpoint included.
type Envelope struct {
	IsSucceed bool            `json:"isSucceed"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MessageOr returns the server message, or fallback when it is empty.
func (e *Envelope) MessageOr(fallback string) string {
	if e == nil || e.Message == "" {
		return fallback
	}
	return e.Message
}

// tokenPayload covers both wire shapes for issued tokens.
type tokenPayload struct {
	Tokens       *model.Tokens `json:"tokens"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

// Tokens extracts an access/refresh pair from the envelope data. Extraction
// rules in fixed priority order: nested data.tokens first, then the
// flattened accessToken/refreshToken fields. Both tokens must be present.
func (e *Envelope) Tokens() (*model.Tokens, bool) {
	if e == nil || len(e.Data) == 0 {
		return nil, false
	}
	var p tokenPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, false
	}
	if p.Tokens != nil && p.Tokens.AccessToken != "" && p.Tokens.RefreshToken != "" {
		t := *p.Tokens
		return &t, true
	}
	if p.AccessToken != "" && p.RefreshToken != "" {
		return &model.Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}, true
	}
	return nil, false
}

// LoginFlags are the OTP-related fields of a login or resend response.
type LoginFlags struct {
	NeedOTP     *bool  `json:"needOtp"`
	OTPRequired *bool  `json:"otpRequired"`
	OTPSample   string `json:"otpSample"`
}

// Flags decodes the OTP flags from the envelope data, tolerating any shape.
func (e *Envelope) Flags() LoginFlags {
	var f LoginFlags
	if e != nil && len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &f)
	}
	return f
}

// OTPNotRequired reports whether the server explicitly waived the OTP step.
// Absent flags mean an OTP is still expected.
func (f LoginFlags) OTPNotRequired() bool {
	return (f.NeedOTP != nil && !*f.NeedOTP) || (f.OTPRequired != nil && !*f.OTPRequired)
}

// Client issues requests against the auth service.
type Client struct {
	baseURL      string
	otpDebugPath string
	http         *http.Client
}

// New creates a Client for baseURL. otpDebugPath is the inspection endpoint
// path (debug deployments only).
func New(baseURL, otpDebugPath string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		otpDebugPath: otpDebugPath,
		http:         &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(req *http.Request) (*Envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: status %d: %w", req.Method, req.URL.Path, resp.StatusCode, err)
	}
	return &env, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, deviceID string) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set(deviceHeader, deviceID)
	}
	return c.do(req)
}

// Login submits phone+password. The response may demand an OTP.
func (c *Client) Login(ctx context.Context, phone, password, deviceID string) (*Envelope, error) {
	return c.postJSON(ctx, "/auth/login", map[string]string{
		"phone":    phone,
		"password": password,
	}, deviceID)
}

// VerifyLoginOTP submits an OTP for an in-flight login.
func (c *Client) VerifyLoginOTP(ctx context.Context, phone, otp, deviceID string) (*Envelope, error) {
	return c.postJSON(ctx, "/auth/verify-login-otp", map[string]string{
		"phone": phone,
		"otp":   otp,
	}, deviceID)
}

// ResendLoginOTP requests a new OTP for an in-flight login.
func (c *Client) ResendLoginOTP(ctx context.Context, phone, deviceID string) (*Envelope, error) {
	return c.postJSON(ctx, "/auth/resend-otp-login", map[string]string{
		"phone": phone,
	}, deviceID)
}

// RefreshToken exchanges a refresh token for a new pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, deviceID string) (*Envelope, error) {
	return c.postJSON(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": refreshToken,
	}, deviceID)
}

// Me fetches the profile with a bearer access token.
func (c *Client) Me(ctx context.Context, accessToken string) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.do(req)
}

// InspectOTP reads the most recent OTP for phone+otpContext from the debug
// inspection endpoint. Requires the remote service to run with OTP debugging.
func (c *Client) InspectOTP(ctx context.Context, phone, otpContext string) (*Envelope, error) {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("context", otpContext)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.otpDebugPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}
