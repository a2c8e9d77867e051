package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cv-builder/internal/domain"
	"cv-builder/internal/session"
)

func newLoginCmd(st *state) *cobra.Command {
	var s domain.Session
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the credential issued by the CV builder site",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			restored, err := st.app.Builder.SwitchUser(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", s.UserID)
			if restored {
				fmt.Fprintln(cmd.OutOrStdout(), "Restored your saved draft.")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&s.AccessToken, "token", "", "access token")
	cmd.Flags().StringVar(&s.UserID, "user-id", "", "user id")
	cmd.Flags().StringVar(&s.Email, "email", "", "user email")
	cmd.Flags().StringVar(&s.Role, "role", "", "user role")
	cmd.Flags().StringVar(&s.FullName, "name", "", "user full name")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newLogoutCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and delete every stored draft",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			st.app.Builder.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out. Local drafts removed.")
			return nil
		}),
	}
}

func newWhoamiCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: st.withApp(func(cmd *cobra.Command, _ []string) error {
			s, err := st.app.Sessions.Current(cmd.Context())
			if errors.Is(err, session.ErrNotSignedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("not signed in"))
				return nil
			}
			if err != nil {
				return err
			}
			line := s.UserID
			if s.Email != "" {
				line += " <" + s.Email + ">"
			}
			if s.Role != "" {
				line += " (" + s.Role + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		}),
	}
}
