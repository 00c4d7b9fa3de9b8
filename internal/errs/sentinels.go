// Package errs contains sentinel errors and reason codes used across layers
// for stable error mapping.
package errs

import "errors"

// ErrOTPTimeout indicates no usable OTP was observed within the wait deadline.
var ErrOTPTimeout = errors.New("otp timeout")

// Reason codes carried in results and attempt records. Server-supplied
// failure messages propagate verbatim and may fall outside this set.
const (
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
	ReasonLoginFail          = "LOGIN_FAIL"
	ReasonNeedOTP            = "NEED_OTP"
	ReasonOTPTimeout         = "OTP_TIMEOUT"
	ReasonVerifyFail         = "VERIFY_FAIL"
	ReasonVerifyExhausted    = "OTP_VERIFY_EXHAUSTED"
	ReasonResendFail         = "RESEND_FAIL"
	ReasonNoTokens           = "NO_TOKENS"
	ReasonRefreshExpired     = "REFRESH_EXPIRED"
	ReasonRefreshFail        = "REFRESH_FAIL"
	ReasonRefreshError       = "REFRESH_ERROR"
	ReasonNetworkError       = "NETWORK_ERROR"

	ReasonAccessOK  = "ACCESS_OK"
	ReasonRefreshOK = "REFRESH_OK"
)
