package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is the single error type raised by the auth core.
// It is constructed at the failure site and never modified afterwards.
// Cause is the lower level failure, kept for diagnostics (it may be nil).
type AuthError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// sentinels for errors.Is - matching is by code only
var (
	ErrUnknown               = &AuthError{Code: CodeUnknown}
	ErrInvalidResponse       = &AuthError{Code: CodeInvalidResponse}
	ErrNetwork               = &AuthError{Code: CodeNetworkError}
	ErrLoginFailed           = &AuthError{Code: CodeLoginFailed}
	ErrLogoutFailed          = &AuthError{Code: CodeLogoutFailed}
	ErrSessionExpired        = &AuthError{Code: CodeSessionExpired}
	ErrUnauthorized          = &AuthError{Code: CodeUnauthorized}
	ErrPermission            = &AuthError{Code: CodePermissionError}
	ErrVersionCheckFailed    = &AuthError{Code: CodeVersionCheckFailed}
	ErrNotFound              = &AuthError{Code: CodeNotFound}
	ErrInvalidData           = &AuthError{Code: CodeInvalidData}
	ErrInvalidInput          = &AuthError{Code: CodeInvalidInput}
	ErrSyncFailed            = &AuthError{Code: CodeSyncFailed}
	ErrTypeControl           = &AuthError{Code: CodeTypeControlError}
	ErrConfigControl         = &AuthError{Code: CodeConfigControlError}
	ErrPlanActionUnavailable = &AuthError{Code: CodePlanActionUnavailable}
)

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, int(e.Code), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches any *AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// UserError returns a message suitable for display: the error's own message if it has one, otherwise
// the default message for its code.
func (e *AuthError) UserError() string {
	if e.Message != "" {
		return e.Message
	}
	return MessageFor(e.Code)
}

// DefaultMessage is the taxonomy message for the error's code.
func (e *AuthError) DefaultMessage() string {
	return MessageFor(e.Code)
}

// New creates an AuthError with the default message for code.
func New(code Code) *AuthError {
	return &AuthError{Code: code, Message: MessageFor(code)}
}

// Newf creates an AuthError with a custom message.
func Newf(code Code, format string, args ...any) *AuthError {
	return &AuthError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an AuthError with the default message for code and cause attached.
func Wrap(code Code, cause error) *AuthError {
	return &AuthError{Code: code, Message: MessageFor(code), Cause: cause}
}

// FromServer builds the error embedded in a status:false response.
// An empty server text falls back to the default message; the numeric code is kept even when it is not
// part of the table.
func FromServer(code int, txt string) *AuthError {
	c := Code(code)
	if txt == "" {
		txt = MessageFor(c)
	}
	return &AuthError{Code: c, Message: txt}
}

// FromHTTPStatus classifies a non-2xx response whose body could not be used.
func FromHTTPStatus(status int) *AuthError {
	var code Code
	switch status {
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodePermissionError
	case http.StatusNotFound:
		code = CodeNotFound
	default:
		code = CodeNetworkError
	}
	return &AuthError{
		Code:    code,
		Message: MessageFor(code),
		Cause:   fmt.Errorf("server responded with status %d", status),
	}
}

// As returns the first *AuthError in err's chain.
func As(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the code of the first *AuthError in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeUnknown
}
