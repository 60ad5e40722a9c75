package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
	"github.com/information-sharing-networks/authcore/internal/protocol"
)

// loginRecorder names the variant it was shown.
type loginRecorder struct {
	got     string
	message string
	payload *protocol.LoginPayload
}

func (r *loginRecorder) VisitLoginLoading(LoginLoading) { r.got = "loading" }
func (r *loginRecorder) VisitLoginSuccess(s LoginSuccess) {
	r.got = "success"
	r.payload = s.Payload
}
func (r *loginRecorder) VisitLoggedOut(LoggedOutState) { r.got = "logged out" }
func (r *loginRecorder) VisitLoginError(s LoginError) {
	r.got = "error"
	r.message = s.Message
}

type permissionRecorder struct {
	got     string
	message string
}

func (r *permissionRecorder) VisitGranted(PermissionGranted) { r.got = "granted" }
func (r *permissionRecorder) VisitDenied(s PermissionDenied) {
	r.got = "denied"
	r.message = s.Message
}
func (r *permissionRecorder) VisitPermissionError(s PermissionError) {
	r.got = "error"
	r.message = s.Message
}

func TestLoginStateFrom(t *testing.T) {
	payload := &protocol.LoginPayload{UserID: 5}

	tests := []struct {
		name        string
		payload     *protocol.LoginPayload
		err         error
		want        string
		wantMessage string
	}{
		{name: "success", payload: payload, want: "success"},
		{name: "auth error", err: apperrors.Newf(apperrors.CodeLoginFailed, "bad password"), want: "error", wantMessage: "bad password"},
		{name: "auth error without message", err: &apperrors.AuthError{Code: apperrors.CodeNetworkError}, want: "error", wantMessage: apperrors.MessageFor(apperrors.CodeNetworkError)},
		{name: "foreign error", err: errors.New("boom"), want: "error", wantMessage: apperrors.MessageFor(apperrors.CodeUnknown)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r loginRecorder
			LoginStateFrom(tt.payload, tt.err).AcceptLogin(&r)
			if r.got != tt.want {
				t.Errorf("LoginStateFrom() = %s, want %s", r.got, tt.want)
			}
			if r.message != tt.wantMessage {
				t.Errorf("message = %q, want %q", r.message, tt.wantMessage)
			}
			if tt.want == "success" && r.payload != tt.payload {
				t.Errorf("payload not carried")
			}
		})
	}
}

func TestLoggedOut(t *testing.T) {
	var r loginRecorder
	LoggedOut().AcceptLogin(&r)
	if r.got != "logged out" {
		t.Errorf("LoggedOut() visited as %s", r.got)
	}
}

func TestPermissionFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "granted"},
		{name: "unauthorized", err: apperrors.New(apperrors.CodeUnauthorized), want: "denied"},
		{name: "permission", err: apperrors.New(apperrors.CodePermissionError), want: "denied"},
		{name: "session expired", err: apperrors.New(apperrors.CodeSessionExpired), want: "denied"},
		{name: "network", err: apperrors.New(apperrors.CodeNetworkError), want: "error"},
		{name: "invalid response", err: apperrors.New(apperrors.CodeInvalidResponse), want: "error"},
		{name: "plain error", err: errors.New("x"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r permissionRecorder
			PermissionFrom(tt.err).AcceptPermission(&r)
			if r.got != tt.want {
				t.Errorf("PermissionFrom(%v) = %s, want %s", tt.err, r.got, tt.want)
			}
			if tt.want != "granted" && r.message == "" {
				t.Errorf("message is empty")
			}
		})
	}
}

func TestTerminalStatesCarryCode(t *testing.T) {
	err := apperrors.New(apperrors.CodeLogoutFailed)

	if s, ok := LogoutStateFrom(err).(LogoutError); !ok || s.Code != apperrors.CodeLogoutFailed {
		t.Errorf("LogoutStateFrom() = %v", s)
	}
	if _, ok := LogoutStateFrom(nil).(LogoutSuccess); !ok {
		t.Errorf("LogoutStateFrom(nil) is not success")
	}

	vErr := apperrors.New(apperrors.CodeVersionCheckFailed)
	if s, ok := VersionCheckStateFrom(nil, vErr).(VersionCheckError); !ok || s.Code != apperrors.CodeVersionCheckFailed {
		t.Errorf("VersionCheckStateFrom() = %v", s)
	}
	p := &protocol.LoginPayload{ServerVersion: 3}
	if s, ok := VersionCheckStateFrom(p, nil).(VersionCheckSuccess); !ok || s.Payload != p {
		t.Errorf("VersionCheckStateFrom(payload) = %v", s)
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{LoginLoading{}, "login: loading"},
		{LoginSuccess{Payload: &protocol.LoginPayload{UserID: 9}}, "login: success (user 9)"},
		{LoginSuccess{Payload: &protocol.LoginPayload{UserID: protocol.UnknownUserID}}, "login: success"},
		{LoginError{Code: apperrors.CodeLoginFailed, Message: "no"}, "login: error 1200: no"},
		{LogoutSuccess{}, "logout: success"},
		{VersionCheckSuccess{Payload: &protocol.LoginPayload{ServerVersion: 4}}, "version check: compatible (server version 4)"},
		{PermissionDenied{Message: "nope"}, "permission: denied: nope"},
		{Invalid{Message: "bad"}, "invalid: bad"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFieldValidation(t *testing.T) {
	tests := []struct {
		name      string
		validate  func(string) FieldValidation
		input     string
		wantValid bool
	}{
		{"username", ValidateUsername, "alice", true},
		{"username email", ValidateUsername, "alice@example.com", true},
		{"username accents", ValidateUsername, "zoë", true},
		{"username empty", ValidateUsername, "", false},
		{"username blank", ValidateUsername, "   ", false},
		{"username with space", ValidateUsername, "alice smith", false},
		{"username control char", ValidateUsername, "ali\x00ce", false},
		{"password", ValidatePassword, "correct horse battery staple", true},
		{"password empty", ValidatePassword, "", false},
		{"password control char", ValidatePassword, "pass\x07word", false},
		{"device empty", ValidateDeviceAddress, "", true},
		{"device colon", ValidateDeviceAddress, "00:1a:2b:3c:4d:5e", true},
		{"device dash", ValidateDeviceAddress, "00-1A-2B-3C-4D-5E", true},
		{"device eui64", ValidateDeviceAddress, "00:1a:2b:3c:4d:5e:6f:70", false},
		{"device junk", ValidateDeviceAddress, "not-a-mac", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.validate(tt.input)
			if IsValid(got) != tt.wantValid {
				t.Errorf("validate(%q) = %v, want valid %v", tt.input, got, tt.wantValid)
			}
			if inv, ok := got.(Invalid); ok && !strings.HasSuffix(inv.String(), inv.Message) {
				t.Errorf("Invalid.String() = %q", inv.String())
			}
		})
	}
}
