// Package session holds the states of the auth flows.
//
// Each flow has a closed set of states: the interface has an unexported method, so only the variants
// declared here satisfy it. States are values; a new flow invocation produces a new state.
//
// Consumers handle states through the flow's visitor interface. A visitor has one method per variant,
// so adding a variant breaks every consumer at compile time rather than falling into a default case.
package session

import (
	"errors"
	"fmt"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
	"github.com/information-sharing-networks/authcore/internal/protocol"
)

// State is any flow state.
type State interface {
	fmt.Stringer
	sealed()
}

/*
Login
*/

type LoginState interface {
	State
	AcceptLogin(LoginVisitor)
}

type LoginVisitor interface {
	VisitLoginLoading(LoginLoading)
	VisitLoginSuccess(LoginSuccess)
	VisitLoggedOut(LoggedOutState)
	VisitLoginError(LoginError)
}

type LoginLoading struct{}

// LoginSuccess holds the payload of a completed login. The payload is shared and must not be modified.
type LoginSuccess struct {
	Payload *protocol.LoginPayload
}

// LoggedOutState is the login flow after the session was cleared.
type LoggedOutState struct{}

type LoginError struct {
	Code    apperrors.Code
	Message string
}

func (LoginLoading) sealed()   {}
func (LoginSuccess) sealed()   {}
func (LoggedOutState) sealed() {}
func (LoginError) sealed()     {}

func (s LoginLoading) AcceptLogin(v LoginVisitor)   { v.VisitLoginLoading(s) }
func (s LoginSuccess) AcceptLogin(v LoginVisitor)   { v.VisitLoginSuccess(s) }
func (s LoggedOutState) AcceptLogin(v LoginVisitor) { v.VisitLoggedOut(s) }
func (s LoginError) AcceptLogin(v LoginVisitor)     { v.VisitLoginError(s) }

func (LoginLoading) String() string { return "login: loading" }

func (s LoginSuccess) String() string {
	if s.Payload == nil || !s.Payload.HasUserID() {
		return "login: success"
	}
	return fmt.Sprintf("login: success (user %d)", s.Payload.UserID)
}

func (LoggedOutState) String() string { return "login: logged out" }

func (s LoginError) String() string {
	return fmt.Sprintf("login: error %d: %s", int(s.Code), s.Message)
}

// LoginStateFrom converts the outcome of a login or check-login into a terminal state.
func LoginStateFrom(payload *protocol.LoginPayload, err error) LoginState {
	if err != nil {
		code, msg := describe(err)
		return LoginError{Code: code, Message: msg}
	}
	return LoginSuccess{Payload: payload}
}

// LoggedOut is the login state after the session has been cleared.
func LoggedOut() LoginState {
	return LoggedOutState{}
}

/*
Logout
*/

type LogoutState interface {
	State
	AcceptLogout(LogoutVisitor)
}

type LogoutVisitor interface {
	VisitLogoutLoading(LogoutLoading)
	VisitLogoutSuccess(LogoutSuccess)
	VisitLogoutError(LogoutError)
}

type LogoutLoading struct{}
type LogoutSuccess struct{}

type LogoutError struct {
	Code    apperrors.Code
	Message string
}

func (LogoutLoading) sealed() {}
func (LogoutSuccess) sealed() {}
func (LogoutError) sealed()   {}

func (s LogoutLoading) AcceptLogout(v LogoutVisitor) { v.VisitLogoutLoading(s) }
func (s LogoutSuccess) AcceptLogout(v LogoutVisitor) { v.VisitLogoutSuccess(s) }
func (s LogoutError) AcceptLogout(v LogoutVisitor)   { v.VisitLogoutError(s) }

func (LogoutLoading) String() string { return "logout: loading" }
func (LogoutSuccess) String() string { return "logout: success" }
func (s LogoutError) String() string {
	return fmt.Sprintf("logout: error %d: %s", int(s.Code), s.Message)
}

func LogoutStateFrom(err error) LogoutState {
	if err != nil {
		code, msg := describe(err)
		return LogoutError{Code: code, Message: msg}
	}
	return LogoutSuccess{}
}

/*
Version check
*/

type VersionCheckState interface {
	State
	AcceptVersionCheck(VersionCheckVisitor)
}

type VersionCheckVisitor interface {
	VisitVersionCheckLoading(VersionCheckLoading)
	VisitVersionCheckSuccess(VersionCheckSuccess)
	VisitVersionCheckError(VersionCheckError)
}

type VersionCheckLoading struct{}

type VersionCheckSuccess struct {
	Payload *protocol.LoginPayload
}

type VersionCheckError struct {
	Code    apperrors.Code
	Message string
}

func (VersionCheckLoading) sealed() {}
func (VersionCheckSuccess) sealed() {}
func (VersionCheckError) sealed()   {}

func (s VersionCheckLoading) AcceptVersionCheck(v VersionCheckVisitor) { v.VisitVersionCheckLoading(s) }
func (s VersionCheckSuccess) AcceptVersionCheck(v VersionCheckVisitor) { v.VisitVersionCheckSuccess(s) }
func (s VersionCheckError) AcceptVersionCheck(v VersionCheckVisitor)   { v.VisitVersionCheckError(s) }

func (VersionCheckLoading) String() string { return "version check: loading" }

func (s VersionCheckSuccess) String() string {
	if s.Payload == nil {
		return "version check: compatible"
	}
	return fmt.Sprintf("version check: compatible (server version %d)", s.Payload.ServerVersion)
}

func (s VersionCheckError) String() string {
	return fmt.Sprintf("version check: error %d: %s", int(s.Code), s.Message)
}

func VersionCheckStateFrom(payload *protocol.LoginPayload, err error) VersionCheckState {
	if err != nil {
		code, msg := describe(err)
		return VersionCheckError{Code: code, Message: msg}
	}
	return VersionCheckSuccess{Payload: payload}
}

/*
Permission
*/

type PermissionState interface {
	State
	AcceptPermission(PermissionVisitor)
}

type PermissionVisitor interface {
	VisitGranted(PermissionGranted)
	VisitDenied(PermissionDenied)
	VisitPermissionError(PermissionError)
}

type PermissionGranted struct{}

type PermissionDenied struct {
	Message string
}

type PermissionError struct {
	Code    apperrors.Code
	Message string
}

func (PermissionGranted) sealed() {}
func (PermissionDenied) sealed()  {}
func (PermissionError) sealed()   {}

func (s PermissionGranted) AcceptPermission(v PermissionVisitor) { v.VisitGranted(s) }
func (s PermissionDenied) AcceptPermission(v PermissionVisitor)  { v.VisitDenied(s) }
func (s PermissionError) AcceptPermission(v PermissionVisitor)   { v.VisitPermissionError(s) }

func (PermissionGranted) String() string { return "permission: granted" }
func (s PermissionDenied) String() string {
	return "permission: denied: " + s.Message
}
func (s PermissionError) String() string {
	return fmt.Sprintf("permission: error %d: %s", int(s.Code), s.Message)
}

// PermissionFrom classifies the outcome of a permission check.
// Errors in the auth category deny the permission; any other error leaves it undecided.
func PermissionFrom(err error) PermissionState {
	if err == nil {
		return PermissionGranted{}
	}
	code, msg := describe(err)
	if code.Category() == apperrors.CategoryAuth {
		return PermissionDenied{Message: msg}
	}
	return PermissionError{Code: code, Message: msg}
}

// describe returns the code and a displayable, non-empty message for err.
func describe(err error) (apperrors.Code, string) {
	var ae *apperrors.AuthError
	if errors.As(err, &ae) {
		return ae.Code, ae.UserError()
	}
	return apperrors.CodeUnknown, apperrors.MessageFor(apperrors.CodeUnknown)
}
