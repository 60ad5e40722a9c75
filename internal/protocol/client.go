// Package protocol is the client for the remote auth API.
//
// Every operation posts a JSON body and receives the same envelope: {"status":true,"data":{...}} or
// {"status":false,"error":{"code":N,"txt":"..."}}. Errors are returned as *apperrors.AuthError:
//   - no response (connection failure, timeout, cancellation): NetworkError
//   - a response that is not a valid envelope: InvalidResponse
//   - a non-2xx response without a usable envelope: classified by HTTP status
//
// A well formed status:false response is not an error; it is returned as a LoginResult carrying the
// server's error, and takes precedence over the HTTP status it arrived with.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
)

const (
	loginPath        = "/api/login"
	logoutPath       = "/api/logout"
	checkLoginPath   = "/api/check-login"
	checkVersionPath = "/api/check-version"
)

// Client is stateless apart from its configuration and safe for concurrent use.
type Client struct {
	baseURL   string
	transport Transport
}

func NewClient(baseURL string, transport Transport) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type checkLoginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	DeviceAddress string `json:"deviceAddress"`
}

type logoutRequest struct {
	UserID        int64  `json:"userId"`
	DeviceAddress string `json:"deviceAddress"`
}

type checkVersionRequest struct {
	UserID   int64  `json:"userId"`
	DeviceID string `json:"deviceId"`
}

// Login authenticates username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return c.call(ctx, loginPath, loginRequest{Username: username, Password: password})
}

// Logout ends the server session for userID on deviceAddress.
// A failure to reach the server is always returned as an error: the logout was not confirmed.
func (c *Client) Logout(ctx context.Context, userID int64, deviceAddress string) (*LoginResult, error) {
	return c.call(ctx, logoutPath, logoutRequest{UserID: userID, DeviceAddress: deviceAddress})
}

// CheckLogin re-validates stored credentials, typically when the application resumes.
func (c *Client) CheckLogin(ctx context.Context, username, password, deviceAddress string) (*LoginResult, error) {
	return c.call(ctx, checkLoginPath, checkLoginRequest{
		Username:      username,
		Password:      password,
		DeviceAddress: deviceAddress,
	})
}

// CheckVersion asks the server whether this client is compatible.
// When the server says it is not, the result's error is a VersionCheckFailed carrying the server's
// message, with the server's own error as cause.
func (c *Client) CheckVersion(ctx context.Context, userID int64, deviceID string) (*LoginResult, error) {
	res, err := c.call(ctx, checkVersionPath, checkVersionRequest{UserID: userID, DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	if !res.Status {
		res.Error = &apperrors.AuthError{
			Code:    apperrors.CodeVersionCheckFailed,
			Message: res.Error.UserError(),
			Cause:   res.Error,
		}
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, path string, request any) (*LoginResult, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Errorf("marshaling %s request: %w", path, err))
	}

	resBody, status, err := c.transport.Post(ctx, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNetworkError, err)
	}

	res, decodeErr := decodeEnvelope(resBody)
	if status < 200 || status > 299 {
		if decodeErr == nil && !res.Status {
			return res, nil
		}
		return nil, apperrors.FromHTTPStatus(status)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return res, nil
}
