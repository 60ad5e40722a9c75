package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/authcore/internal/session"
	"github.com/information-sharing-networks/authcore/internal/vault"
	"github.com/information-sharing-networks/authcore/internal/version"
)

// passwordEnv is read when --password is not given. Passwords are never printed.
const passwordEnv = "AUTHCTL_PASSWORD"

var errFlowFailed = errors.New("operation failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Authenticate against the auth API and manage stored credentials",
		Long:          `authctl drives the login, logout, credential check and version check flows and manages the encrypted credential vault.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newCheckCmd(),
		newVersionCheckCmd(),
		newStatusCmd(),
		newClearCmd(),
	)
	return root
}

// withApp wires the components, runs fn and releases them.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newLoginCmd() *cobra.Command {
	var username, password string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				if username == "" {
					username, _ = a.vault.Username(ctx)
				}
				if password == "" {
					password = os.Getenv(passwordEnv)
				}
				if password == "" {
					password, _ = a.vault.Password(ctx)
				}

				for _, check := range []session.FieldValidation{
					session.ValidateUsername(username),
					session.ValidatePassword(password),
				} {
					if inv, ok := check.(session.Invalid); ok {
						return errors.New(inv.Message)
					}
				}

				p := &printer{out: cmd.OutOrStdout()}
				a.service.LoginFlow(ctx, username, password).AcceptLogin(p)
				if p.failed {
					return errFlowFailed
				}
				if remember {
					if err := a.service.RememberCredentials(ctx, username, password); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "credentials saved")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (defaults to the saved username)")
	cmd.Flags().StringVar(&password, "password", "", "password (prefer the "+passwordEnv+" environment variable)")
	cmd.Flags().BoolVar(&remember, "remember", false, "save the username and password in the vault after a successful login")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the server session of the stored user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				userID := a.vault.UserID(ctx)
				if userID == vault.NoUserID {
					return errors.New("not logged in")
				}
				device, _ := a.vault.DeviceAddress(ctx)

				p := &printer{out: cmd.OutOrStdout()}
				a.service.LogoutFlow(ctx, userID, device).AcceptLogout(p)
				if p.failed {
					return errFlowFailed
				}
				return nil
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Re-validate the saved credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				p := &printer{out: cmd.OutOrStdout()}
				a.service.PermissionFlow(cmd.Context()).AcceptPermission(p)
				if p.failed {
					return errFlowFailed
				}
				return nil
			})
		},
	}
}

func newVersionCheckCmd() *cobra.Command {
	var deviceID string

	cmd := &cobra.Command{
		Use:   "version-check",
		Short: "Ask the server whether this client version is supported",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				if deviceID == "" {
					deviceID, _ = a.vault.DeviceAddress(ctx)
				}

				p := &printer{out: cmd.OutOrStdout()}
				a.service.VersionCheckFlow(ctx, a.vault.UserID(ctx), deviceID).AcceptVersionCheck(p)
				if p.failed {
					return errFlowFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device id (defaults to the stored device address)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the vault holds, without revealing secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.vault.Status(cmd.Context()))
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Erase everything stored in the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				a.service.ClearSession(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), session.LoggedOut().String())
				return nil
			})
		},
	}
}

// printer writes terminal states to out and records whether the flow failed.
type printer struct {
	out    io.Writer
	failed bool
}

func (p *printer) line(s session.State) {
	fmt.Fprintln(p.out, s.String())
}

func (p *printer) fail(s session.State) {
	p.failed = true
	p.line(s)
}

func (p *printer) VisitLoginLoading(s session.LoginLoading) { p.line(s) }
func (p *printer) VisitLoginSuccess(s session.LoginSuccess) {
	p.line(s)
	if s.Payload != nil && s.Payload.Mail != "" {
		fmt.Fprintf(p.out, "mail: %s\n", s.Payload.Mail)
	}
}
func (p *printer) VisitLoggedOut(s session.LoggedOutState) { p.line(s) }
func (p *printer) VisitLoginError(s session.LoginError)    { p.fail(s) }

func (p *printer) VisitLogoutLoading(s session.LogoutLoading) { p.line(s) }
func (p *printer) VisitLogoutSuccess(s session.LogoutSuccess) { p.line(s) }
func (p *printer) VisitLogoutError(s session.LogoutError)     { p.fail(s) }

func (p *printer) VisitVersionCheckLoading(s session.VersionCheckLoading) { p.line(s) }
func (p *printer) VisitVersionCheckSuccess(s session.VersionCheckSuccess) { p.line(s) }
func (p *printer) VisitVersionCheckError(s session.VersionCheckError)     { p.fail(s) }

func (p *printer) VisitGranted(s session.PermissionGranted)       { p.line(s) }
func (p *printer) VisitDenied(s session.PermissionDenied)         { p.fail(s) }
func (p *printer) VisitPermissionError(s session.PermissionError) { p.fail(s) }
