package authapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// minOTPLen rejects junk values surfaced by the inspection endpoint.
const minOTPLen = 4

// OTPReport is the parsed result of one inspection response.
type OTPReport struct {
	OTP     string
	At      time.Time // when the OTP was issued/received
	AtKnown bool
	KeyUsed string
}

type otpMessage struct {
	OTP          string          `json:"otp"`
	Timestamp    json.RawMessage `json:"timestamp"`
	ReceivedAtLC json.RawMessage `json:"received_at"`
	ReceivedAt   json.RawMessage `json:"receivedAt"`
}

type otpPayload struct {
	OTP       string          `json:"otp"`
	SMSOtp    string          `json:"smsOtp"`
	OTPKeyOtp string          `json:"otpKeyOtp"`
	Timestamp json.RawMessage `json:"timestamp"`
	Msg       *otpMessage     `json:"msg"`
	SMSLatest *otpMessage     `json:"smsLatest"`
	KeyUsed   string          `json:"keyUsed"`
}

// ParseOTP extracts an OTP and its timestamp from inspection-endpoint data.
// The endpoint has grown several response shapes; the fields are tried in a
// fixed priority order:
//
//	otp value:  otp, smsOtp, otpKeyOtp, msg.otp, smsLatest.otp
//	timestamp:  msg.timestamp, msg.received_at, msg.receivedAt, timestamp
//
// Values shorter than four characters after trimming are discarded. A
// missing timestamp yields AtKnown=false, which callers treat as fresh.
func ParseOTP(data json.RawMessage) (OTPReport, bool) {
	if len(data) == 0 {
		return OTPReport{}, false
	}
	var p otpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return OTPReport{}, false
	}

	otp := firstNonEmpty(p.OTP, p.SMSOtp, p.OTPKeyOtp)
	if otp == "" {
		if p.Msg != nil {
			otp = p.Msg.OTP
		}
		if otp == "" && p.SMSLatest != nil {
			otp = p.SMSLatest.OTP
		}
	}
	otp = strings.TrimSpace(otp)
	if len(otp) < minOTPLen {
		return OTPReport{}, false
	}

	rep := OTPReport{OTP: otp, KeyUsed: p.KeyUsed}
	for _, raw := range timestampCandidates(&p) {
		if at, ok := parseTimestamp(raw); ok {
			rep.At, rep.AtKnown = at, true
			break
		}
	}
	return rep, true
}

func timestampCandidates(p *otpPayload) []json.RawMessage {
	var out []json.RawMessage
	if p.Msg != nil {
		out = append(out, p.Msg.Timestamp, p.Msg.ReceivedAtLC, p.Msg.ReceivedAt)
	}
	if p.SMSLatest != nil {
		out = append(out, p.SMSLatest.Timestamp, p.SMSLatest.ReceivedAtLC, p.SMSLatest.ReceivedAt)
	}
	return append(out, p.Timestamp)
}

// parseTimestamp accepts epoch milliseconds as a JSON number, a numeric
// string, or a date string.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(n), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
