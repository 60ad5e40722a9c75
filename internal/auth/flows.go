package auth

import (
	"context"

	"github.com/information-sharing-networks/authcore/internal/session"
)

// The flow helpers run an operation and express its outcome as a session state. The loading state
// (where the flow has one) and then the terminal state are passed to Options.StateSink.

func (a *AuthService) LoginFlow(ctx context.Context, username, password string) session.LoginState {
	a.emit(session.LoginLoading{})
	state := session.LoginStateFrom(a.Login(ctx, username, password))
	a.emit(state)
	return state
}

func (a *AuthService) LogoutFlow(ctx context.Context, userID int64, deviceAddress string) session.LogoutState {
	a.emit(session.LogoutLoading{})
	_, err := a.Logout(ctx, userID, deviceAddress)
	state := session.LogoutStateFrom(err)
	a.emit(state)
	return state
}

func (a *AuthService) VersionCheckFlow(ctx context.Context, userID int64, deviceID string) session.VersionCheckState {
	a.emit(session.VersionCheckLoading{})
	state := session.VersionCheckStateFrom(a.CheckVersion(ctx, userID, deviceID))
	a.emit(state)
	return state
}

// PermissionFlow re-validates the stored credentials and reports whether the session may continue.
func (a *AuthService) PermissionFlow(ctx context.Context) session.PermissionState {
	_, err := a.CheckLogin(ctx)
	state := session.PermissionFrom(err)
	a.emit(state)
	return state
}

func (a *AuthService) emit(s session.State) {
	if a.sink != nil {
		a.sink(s)
	}
}
