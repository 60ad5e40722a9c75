package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMessageFor(t *testing.T) {
	tests := []struct {
		name string
		code Code
		want string
	}{
		{
			name: "known code",
			code: CodeNetworkError,
			want: codes[CodeNetworkError].message,
		},
		{
			name: "unknown code falls back",
			code: Code(4242),
			want: codes[CodeUnknown].message,
		},
		{
			name: "zero code falls back",
			code: Code(0),
			want: codes[CodeUnknown].message,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageFor(tt.code); got != tt.want {
				t.Errorf("MessageFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryCodeHasAMessageAndCategory(t *testing.T) {
	for code, info := range codes {
		if info.message == "" {
			t.Errorf("code %d has no message", code)
		}
		if info.name == "" {
			t.Errorf("code %d has no name", code)
		}
		// the hundreds digit groups codes into categories
		for other, otherInfo := range codes {
			if int(code)/100 == int(other)/100 && info.category != otherInfo.category {
				t.Errorf("codes %d and %d share a group but not a category", code, other)
			}
		}
	}
}

func TestAuthErrorIs(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := fmt.Errorf("login: %w", Wrap(CodeNetworkError, cause))

	if !errors.Is(err, ErrNetwork) {
		t.Errorf("errors.Is(err, ErrNetwork) = false, want true")
	}
	if errors.Is(err, ErrLoginFailed) {
		t.Errorf("errors.Is(err, ErrLoginFailed) = true, want false")
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through Unwrap")
	}
	if got := CodeOf(err); got != CodeNetworkError {
		t.Errorf("CodeOf() = %v, want %v", got, CodeNetworkError)
	}
	if got := CodeOf(cause); got != CodeUnknown {
		t.Errorf("CodeOf(plain error) = %v, want %v", got, CodeUnknown)
	}
}

func TestEveryCodeHasASentinel(t *testing.T) {
	sentinels := []*AuthError{
		ErrUnknown, ErrInvalidResponse, ErrNetwork, ErrLoginFailed, ErrLogoutFailed, ErrSessionExpired,
		ErrUnauthorized, ErrPermission, ErrVersionCheckFailed, ErrNotFound, ErrInvalidData, ErrInvalidInput,
		ErrSyncFailed, ErrTypeControl, ErrConfigControl, ErrPlanActionUnavailable,
	}

	covered := make(map[Code]bool, len(sentinels))
	for _, s := range sentinels {
		covered[s.Code] = true
	}
	for code := range codes {
		if !covered[code] {
			t.Errorf("code %d (%s) has no sentinel", code, code)
		}
	}

	err := fmt.Errorf("apply plan: %w", Newf(CodePlanActionUnavailable, "export is not in this plan"))
	if !errors.Is(err, ErrPlanActionUnavailable) {
		t.Errorf("errors.Is(err, ErrPlanActionUnavailable) = false, want true")
	}
}

func TestFromServer(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		txt         string
		wantMessage string
		wantKnown   bool
	}{
		{
			name:        "known code with text",
			code:        int(CodeLoginFailed),
			txt:         "bad password",
			wantMessage: "bad password",
			wantKnown:   true,
		},
		{
			name:        "known code without text",
			code:        int(CodeSessionExpired),
			txt:         "",
			wantMessage: MessageFor(CodeSessionExpired),
			wantKnown:   true,
		},
		{
			name:        "unknown code keeps number",
			code:        77,
			txt:         "",
			wantMessage: MessageFor(CodeUnknown),
			wantKnown:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromServer(tt.code, tt.txt)
			if int(err.Code) != tt.code {
				t.Errorf("Code = %d, want %d", err.Code, tt.code)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.Code.Known() != tt.wantKnown {
				t.Errorf("Known() = %v, want %v", err.Code.Known(), tt.wantKnown)
			}
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Code
	}{
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodePermissionError},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusBadGateway, CodeNetworkError},
		{http.StatusTeapot, CodeNetworkError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromHTTPStatus(tt.status)
			if err.Code != tt.want {
				t.Errorf("FromHTTPStatus(%d) = %v, want %v", tt.status, err.Code, tt.want)
			}
			if err.Cause == nil {
				t.Errorf("FromHTTPStatus(%d) has no cause", tt.status)
			}
		})
	}
}
