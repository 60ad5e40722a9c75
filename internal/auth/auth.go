// Package auth is the single entry point for authentication.
//
// AuthService combines the credential vault and the auth API client. Each network operation runs on a
// bounded pool of goroutines and the caller waits for its one result. Failures are always returned as
// *apperrors.AuthError: errors that already are AuthErrors are returned unchanged, anything else is
// wrapped with the operation's code (LoginFailed, LogoutFailed, VersionCheckFailed) and kept as the cause.
//
// Persisting the username and password is the caller's decision ("remember me") and is done with
// RememberCredentials. A successful login only records the server's user id and device address.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
	"github.com/information-sharing-networks/authcore/internal/logger"
	"github.com/information-sharing-networks/authcore/internal/protocol"
	"github.com/information-sharing-networks/authcore/internal/session"
	"github.com/information-sharing-networks/authcore/internal/vault"
)

// Protocol is the remote side of the auth flows. *protocol.Client implements it.
type Protocol interface {
	Login(ctx context.Context, username, password string) (*protocol.LoginResult, error)
	Logout(ctx context.Context, userID int64, deviceAddress string) (*protocol.LoginResult, error)
	CheckLogin(ctx context.Context, username, password, deviceAddress string) (*protocol.LoginResult, error)
	CheckVersion(ctx context.Context, userID int64, deviceID string) (*protocol.LoginResult, error)
}

const defaultMaxConcurrent = 4

type Options struct {
	// MaxConcurrent bounds the number of network operations in flight. Defaults to 4.
	MaxConcurrent int64
	// StateSink, when set, receives every state produced by the *Flow methods, in order.
	StateSink func(session.State)
	Logger    *slog.Logger
}

// AuthService is safe for concurrent use. Concurrent calls are not coalesced: two simultaneous logins
// both reach the server and both write to the vault.
type AuthService struct {
	vault    *vault.Vault
	client   Protocol
	logger   *slog.Logger
	pool     *semaphore.Weighted
	sink     func(session.State)
	observer observerSlot
}

func NewAuthService(v *vault.Vault, client Protocol, opts Options) *AuthService {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &AuthService{
		vault:  v,
		client: client,
		logger: log.With(slog.String("component", "auth")),
		pool:   semaphore.NewWeighted(maxConcurrent),
		sink:   opts.StateSink,
	}
}

// Login authenticates against the server. On success the user id and device address returned by the
// server are recorded in the vault and the observer's OnLoginSuccess is called.
func (a *AuthService) Login(ctx context.Context, username, password string) (*protocol.LoginPayload, error) {
	res, err := a.run(ctx, func(ctx context.Context) (*protocol.LoginResult, error) {
		return a.client.Login(ctx, username, password)
	})
	payload, authErr := resolve(apperrors.CodeLoginFailed, res, err)
	if authErr != nil {
		a.logFailure(ctx, "login", authErr)
		a.observer.notify(func(o Observer) { o.OnLoginFailure(authErr.UserError()) })
		return nil, authErr
	}

	a.recordSession(ctx, payload)
	a.logger.InfoContext(ctx, "login succeeded", slog.Int64("user_id", payload.UserID))
	a.observer.notify(func(o Observer) { o.OnLoginSuccess(payload) })
	return payload, nil
}

// Logout ends the server session. Failure to confirm the logout is always returned.
// On success the vault's session identifiers are removed; remembered credentials are kept.
func (a *AuthService) Logout(ctx context.Context, userID int64, deviceAddress string) (*protocol.LoginPayload, error) {
	res, err := a.run(ctx, func(ctx context.Context) (*protocol.LoginResult, error) {
		return a.client.Logout(ctx, userID, deviceAddress)
	})
	payload, authErr := resolve(apperrors.CodeLogoutFailed, res, err)
	if authErr != nil {
		a.logFailure(ctx, "logout", authErr)
		a.observer.notify(func(o Observer) { o.OnLogoutFailure(authErr.UserError()) })
		return nil, authErr
	}

	if err := a.vault.ClearSessionIdentifiers(ctx); err != nil {
		a.logger.ErrorContext(ctx, "could not clear session identifiers after logout", slog.String("error", err.Error()))
	}
	a.logger.InfoContext(ctx, "logout succeeded", slog.Int64("user_id", userID))
	a.observer.notify(func(o Observer) { o.OnLogoutSuccess() })
	return payload, nil
}

// CheckLogin re-validates the credentials held in the vault, typically when the application resumes.
// Without stored credentials it fails with InvalidInput and nothing is sent.
// The outcome is reported to the observer's login callbacks.
func (a *AuthService) CheckLogin(ctx context.Context) (*protocol.LoginPayload, error) {
	username, hasUsername := a.vault.Username(ctx)
	password, hasPassword := a.vault.Password(ctx)
	if !hasUsername || !hasPassword {
		authErr := apperrors.Newf(apperrors.CodeInvalidInput, "No saved credentials")
		a.logFailure(ctx, "check login", authErr)
		a.observer.notify(func(o Observer) { o.OnLoginFailure(authErr.UserError()) })
		return nil, authErr
	}
	deviceAddress, _ := a.vault.DeviceAddress(ctx)

	res, err := a.run(ctx, func(ctx context.Context) (*protocol.LoginResult, error) {
		return a.client.CheckLogin(ctx, username, password, deviceAddress)
	})
	payload, authErr := resolve(apperrors.CodeLoginFailed, res, err)
	if authErr != nil {
		a.logFailure(ctx, "check login", authErr)
		a.observer.notify(func(o Observer) { o.OnLoginFailure(authErr.UserError()) })
		return nil, authErr
	}

	a.recordSession(ctx, payload)
	a.logger.DebugContext(ctx, "stored credentials still valid", slog.Int64("user_id", payload.UserID))
	a.observer.notify(func(o Observer) { o.OnLoginSuccess(payload) })
	return payload, nil
}

// CheckVersion asks the server whether this client version is still supported.
func (a *AuthService) CheckVersion(ctx context.Context, userID int64, deviceID string) (*protocol.LoginPayload, error) {
	res, err := a.run(ctx, func(ctx context.Context) (*protocol.LoginResult, error) {
		return a.client.CheckVersion(ctx, userID, deviceID)
	})
	payload, authErr := resolve(apperrors.CodeVersionCheckFailed, res, err)
	if authErr != nil {
		a.logFailure(ctx, "version check", authErr)
		a.observer.notify(func(o Observer) { o.OnVersionCheckFailure(authErr.UserError()) })
		return nil, authErr
	}

	a.observer.notify(func(o Observer) { o.OnVersionCheckSuccess(payload) })
	return payload, nil
}

// RememberCredentials stores username and password in the vault.
func (a *AuthService) RememberCredentials(ctx context.Context, username, password string) error {
	if err := a.vault.Save(ctx, username, password); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, fmt.Errorf("remember credentials: %w", err))
	}
	return nil
}

// ClearSession erases everything in the vault. It does not contact the server and always succeeds;
// a storage failure is logged.
func (a *AuthService) ClearSession(ctx context.Context) {
	if err := a.vault.Clear(ctx); err != nil {
		a.logger.ErrorContext(ctx, "could not clear credential vault", slog.String("error", err.Error()))
	}
	a.emit(session.LoggedOut())
}

// SetObserver registers o, replacing any previous observer. nil removes it.
func (a *AuthService) SetObserver(o Observer) {
	a.observer.set(o)
}

// run executes op on the I/O pool and waits for its result.
// A context that ends while waiting for a pool slot is reported as a network error.
func (a *AuthService) run(ctx context.Context, op func(context.Context) (*protocol.LoginResult, error)) (*protocol.LoginResult, error) {
	if err := a.pool.Acquire(ctx, 1); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNetworkError, err)
	}

	type outcome struct {
		res *protocol.LoginResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer a.pool.Release(1)
		res, err := op(ctx)
		done <- outcome{res: res, err: err}
	}()

	o := <-done
	return o.res, o.err
}

// resolve turns a protocol outcome into a payload or a single AuthError.
func resolve(fallback apperrors.Code, res *protocol.LoginResult, err error) (*protocol.LoginPayload, *apperrors.AuthError) {
	if err != nil {
		var authErr *apperrors.AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, apperrors.Wrap(fallback, err)
	}
	if res == nil {
		return nil, apperrors.Wrap(fallback, errors.New("no result"))
	}
	if !res.Status {
		if res.Error == nil {
			return nil, apperrors.New(fallback)
		}
		return nil, res.Error
	}
	if res.Data == nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidResponse, "Successful response without data")
	}
	return res.Data, nil
}

// recordSession stores the identifiers a successful login returns. A storage failure does not undo the
// login; it is logged.
func (a *AuthService) recordSession(ctx context.Context, payload *protocol.LoginPayload) {
	if payload.HasUserID() {
		if err := a.vault.SaveUserID(ctx, payload.UserID); err != nil {
			a.logger.ErrorContext(ctx, "could not store user id", slog.String("error", err.Error()))
		}
	}
	if payload.DeviceAddress != "" {
		if err := a.vault.SaveDeviceAddress(ctx, payload.DeviceAddress); err != nil {
			a.logger.ErrorContext(ctx, "could not store device address", slog.String("error", err.Error()))
		}
	}
}

func (a *AuthService) logFailure(ctx context.Context, op string, err *apperrors.AuthError) {
	attrs := []slog.Attr{
		slog.String("operation", op),
		slog.Int("code", int(err.Code)),
		slog.String("code_name", err.Code.String()),
		slog.String("error", err.Error()),
	}
	level := slog.LevelWarn
	if err.Code.Category() == apperrors.CategoryGeneric {
		level = slog.LevelError
	}
	a.logger.LogAttrs(ctx, level, op+" failed", attrs...)
}
