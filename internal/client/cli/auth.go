package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/client"
	"github.com/dmitrijs2005/notekeeper/internal/client/tokenstore"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/spf13/cobra"
)

func (a *App) prompt(value *string, label string) error {
	if *value != "" {
		return nil
	}
	v, err := getSimpleText(a.reader, label, a.out)
	if err != nil {
		return err
	}
	*value = v
	return nil
}

// loadSession returns the stored session, but only for the server it was
// issued by. Tokens are never sent to a different --server.
func (a *App) loadSession() (*tokenstore.Session, error) {
	sess, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if !sameServer(sess.Server, a.config.ServerURL) {
		return nil, fmt.Errorf("%w on %s (stored session is for %s)", tokenstore.ErrNoSession, a.config.ServerURL, sess.Server)
	}
	return sess, nil
}

func sameServer(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}

func (a *App) saveSession(res *client.AuthResult) error {
	return a.store.Save(&tokenstore.Session{
		Server:  a.config.ServerURL,
		User:    res.User,
		Tokens:  res.Token,
		SavedAt: time.Now().UTC(),
	})
}

func newRegisterCmd(a *App) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prompt(&name, "Name"); err != nil {
				return err
			}
			if err := a.prompt(&email, "Email"); err != nil {
				return err
			}
			password, err := getPassword("Password", a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)
			confirm, err := getPassword("Confirm password", a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(confirm)

			id, err := a.api.Register(cmd.Context(), name, email, string(password), string(confirm))
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(a.out, "Registered %s (%s). Run 'notekeeper login' to sign in.\n", id.Email, id.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newLoginCmd(a *App) *cobra.Command {
	var email string
	var remember bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prompt(&email, "Email"); err != nil {
				return err
			}
			password, err := getPassword("Password", a.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			res, err := a.api.SignIn(cmd.Context(), email, string(password), remember)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.saveSession(res); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", res.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&remember, "remember", false, "ask for a long-lived session")
	return cmd
}

func newRefreshCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the stored token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.loadSession()
			if err != nil {
				return err
			}
			res, err := a.api.Refresh(cmd.Context(), sess.Tokens)
			if err != nil {
				if errors.Is(err, common.ErrorUnauthorized) {
					_ = a.store.Remove()
					return fmt.Errorf("session expired, please log in again: %w", err)
				}
				return err
			}
			if err := a.saveSession(res); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Fprintln(a.out, "Tokens refreshed")
			return nil
		},
	}
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.loadSession()
			if err != nil {
				return err
			}

			id, err := a.api.Me(cmd.Context(), sess.Tokens.Access)
			if errors.Is(err, common.ErrorUnauthorized) {
				// Access token expired: rotate once and retry.
				res, rerr := a.api.Refresh(cmd.Context(), sess.Tokens)
				if rerr != nil {
					_ = a.store.Remove()
					return fmt.Errorf("session expired, please log in again: %w", rerr)
				}
				if err := a.saveSession(res); err != nil {
					return fmt.Errorf("saving session: %w", err)
				}
				id, err = a.api.Me(cmd.Context(), res.Token.Access)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s <%s>\nid: %s\n", id.Name, id.Email, id.ID)
			return nil
		},
	}
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Remove(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}
